package sponsor

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/require"
)

func unsignedTx(t *testing.T, source string) *txnbuild.Transaction {
	t.Helper()
	account := txnbuild.NewSimpleAccount(source, 1)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{&txnbuild.Payment{
			Destination: keypair.MustRandom().Address(),
			Amount:      "1",
			Asset:       txnbuild.NativeAsset{},
		}},
		BaseFee:       txnbuild.MinBaseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	})
	require.NoError(t, err)
	return tx
}

func TestInitRejectsMalformedSeed(t *testing.T) {
	for _, seed := range []string{"", "not-a-seed", keypair.MustRandom().Address()} {
		s := New(seed, network.TestNetworkPassphrase)
		require.ErrorIs(t, s.Init(), ErrInvalidSecret)
		_, err := s.PublicKey()
		require.ErrorIs(t, err, ErrInvalidSecret)
	}
}

func TestPublicKeyAndCosign(t *testing.T) {
	kp := keypair.MustRandom()
	s := New(kp.Seed(), network.TestNetworkPassphrase)

	pub, err := s.PublicKey()
	require.NoError(t, err)
	require.Equal(t, kp.Address(), pub)

	other := keypair.MustRandom()
	tx := unsignedTx(t, kp.Address())
	tx, err = tx.Sign(network.TestNetworkPassphrase, other)
	require.NoError(t, err)

	signed, err := s.Cosign(tx)
	require.NoError(t, err)
	require.Len(t, signed.Signatures(), 2)
	require.Equal(t, tx.Signatures()[0], signed.Signatures()[0])

	hash, err := signed.Hash(network.TestNetworkPassphrase)
	require.NoError(t, err)
	require.NoError(t, kp.Verify(hash[:], signed.Signatures()[1].Signature))
}

func TestConcurrentInitParsesOnce(t *testing.T) {
	kp := keypair.MustRandom()
	s := New(kp.Seed(), network.TestNetworkPassphrase)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pub, err := s.PublicKey()
			if err != nil || pub != kp.Address() {
				t.Errorf("unexpected result %q %v", pub, err)
			}
		}()
	}
	wg.Wait()
}

func TestFormattingNeverLeaksSeed(t *testing.T) {
	kp := keypair.MustRandom()
	s := New(kp.Seed(), network.TestNetworkPassphrase)
	require.NoError(t, s.Init())

	for _, out := range []string{fmt.Sprintf("%v", s), fmt.Sprintf("%+v", s), fmt.Sprintf("%#v", s), s.String()} {
		require.False(t, strings.Contains(out, kp.Seed()), out)
		require.False(t, strings.Contains(out, kp.Address()), out)
	}
}
