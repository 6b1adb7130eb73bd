package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/require"

	"github.com/polo-core/polo_core/internal/network"
	"github.com/polo-core/polo_core/internal/txbuild"
)

func memoryNet(t *testing.T) network.Network {
	t.Helper()
	net, err := network.Resolve("memory", "")
	require.NoError(t, err)
	return net
}

func seededSponsor(t *testing.T, l Client) *keypair.Full {
	t.Helper()
	kp := keypair.MustRandom()
	require.NoError(t, SeedAccount(l, kp.Address(), "100"))
	return kp
}

func onboard(t *testing.T, l Client, b *txbuild.Builder, sponsor, user *keypair.Full) (Submission, error) {
	t.Helper()
	ctx := context.Background()
	acc, err := l.LoadAccount(ctx, sponsor.Address())
	require.NoError(t, err)
	tx, err := b.Onboarding(txbuild.Source{AccountID: acc.ID, Sequence: acc.Sequence}, user.Address())
	require.NoError(t, err)
	tx, err = tx.Sign(b.Network().Passphrase, sponsor, user)
	require.NoError(t, err)
	return l.Submit(ctx, tx)
}

func TestInMemoryOnboardingCreatesFundedAccountWithTrustline(t *testing.T) {
	net := memoryNet(t)
	l := NewInMemory(net)
	b := txbuild.New(net)
	sponsor := seededSponsor(t, l)
	user := keypair.MustRandom()

	res, err := onboard(t, l, b, sponsor, user)
	require.NoError(t, err)
	require.Len(t, res.Hash, 64)

	balances, err := l.Balances(context.Background(), user.Address())
	require.NoError(t, err)
	require.Equal(t, "2.0000000", balances["XLM"])
	require.Equal(t, "0.0000000", balances["USDC"])

	sponsorAcc, err := l.LoadAccount(context.Background(), sponsor.Address())
	require.NoError(t, err)
	// 100 - 2 starting balance - 2 * 100 stroop fee
	require.Equal(t, "97.9999800", sponsorAcc.Balances["XLM"])
}

func TestInMemoryRejectsMissingSignature(t *testing.T) {
	net := memoryNet(t)
	l := NewInMemory(net)
	b := txbuild.New(net)
	sponsor := seededSponsor(t, l)
	user := keypair.MustRandom()

	acc, err := l.LoadAccount(context.Background(), sponsor.Address())
	require.NoError(t, err)
	tx, err := b.Onboarding(txbuild.Source{AccountID: acc.ID, Sequence: acc.Sequence}, user.Address())
	require.NoError(t, err)
	tx, err = tx.Sign(net.Passphrase, sponsor)
	require.NoError(t, err)

	_, err = l.Submit(context.Background(), tx)
	var rejected *SubmitError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, "tx_bad_auth", rejected.TransactionCode)

	_, err = l.LoadAccount(context.Background(), user.Address())
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestInMemoryRejectsStaleSequence(t *testing.T) {
	net := memoryNet(t)
	l := NewInMemory(net)
	b := txbuild.New(net)
	sponsor := seededSponsor(t, l)

	acc, err := l.LoadAccount(context.Background(), sponsor.Address())
	require.NoError(t, err)
	tx, err := b.Payment(txbuild.Source{AccountID: acc.ID, Sequence: acc.Sequence - 1}, keypair.MustRandom().Address(), "1", "XLM")
	require.NoError(t, err)
	tx, err = tx.Sign(net.Passphrase, sponsor)
	require.NoError(t, err)

	_, err = l.Submit(context.Background(), tx)
	var rejected *SubmitError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, "tx_bad_seq", rejected.TransactionCode)
}

func TestInMemoryFailedOperationIsAtomic(t *testing.T) {
	net := memoryNet(t)
	l := NewInMemory(net)
	b := txbuild.New(net)
	sponsor := seededSponsor(t, l)
	user := keypair.MustRandom()

	_, err := onboard(t, l, b, sponsor, user)
	require.NoError(t, err)

	// Second onboarding of the same account fails on op 0; nothing moves
	// except the fee and sequence.
	before, err := l.LoadAccount(context.Background(), sponsor.Address())
	require.NoError(t, err)

	_, err = onboard(t, l, b, sponsor, user)
	var rejected *SubmitError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, "tx_failed", rejected.TransactionCode)
	require.True(t, rejected.HasOperationCode("op_already_exists"))

	after, err := l.LoadAccount(context.Background(), sponsor.Address())
	require.NoError(t, err)
	require.Equal(t, before.Sequence+1, after.Sequence)
	require.Equal(t, "97.9999600", after.Balances["XLM"])
}

func TestInMemoryPaymentAndHistory(t *testing.T) {
	net := memoryNet(t)
	l := NewInMemory(net)
	b := txbuild.New(net)
	ctx := context.Background()
	sponsor := seededSponsor(t, l)
	alice, bob := keypair.MustRandom(), keypair.MustRandom()

	_, err := onboard(t, l, b, sponsor, alice)
	require.NoError(t, err)
	_, err = onboard(t, l, b, sponsor, bob)
	require.NoError(t, err)

	for _, amt := range []string{"0.1", "0.2", "0.3"} {
		acc, err := l.LoadAccount(ctx, alice.Address())
		require.NoError(t, err)
		tx, err := b.Payment(txbuild.Source{AccountID: acc.ID, Sequence: acc.Sequence}, bob.Address(), amt, "XLM")
		require.NoError(t, err)
		tx, err = tx.Sign(net.Passphrase, alice)
		require.NoError(t, err)
		_, err = l.Submit(ctx, tx)
		require.NoError(t, err)
	}

	hist := l.PaymentsHistory(ctx, bob.Address(), 2)
	require.False(t, hist.Failed)
	require.Len(t, hist.Records, 2)
	require.Equal(t, "0.3", hist.Records[0].Amount)
	require.Equal(t, "0.2", hist.Records[1].Amount)
	require.Equal(t, alice.Address(), hist.Records[0].From)

	all := l.PaymentsHistory(ctx, bob.Address(), 0)
	require.Len(t, all.Records, 4)
	require.Equal(t, "create_account", all.Records[3].Type)
}

func TestInMemoryPaymentRequiresDestinationTrustline(t *testing.T) {
	net := memoryNet(t)
	l := NewInMemory(net)
	b := txbuild.New(net)
	ctx := context.Background()
	sponsor := seededSponsor(t, l)
	alice := keypair.MustRandom()
	_, err := onboard(t, l, b, sponsor, alice)
	require.NoError(t, err)

	acc, err := l.LoadAccount(ctx, alice.Address())
	require.NoError(t, err)
	tx, err := b.Payment(txbuild.Source{AccountID: acc.ID, Sequence: acc.Sequence}, sponsor.Address(), "5", "USDC")
	require.NoError(t, err)
	tx, err = tx.Sign(net.Passphrase, alice)
	require.NoError(t, err)

	_, err = l.Submit(ctx, tx)
	var rejected *SubmitError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, []string{"op_no_trust"}, rejected.OperationCodes)
}

func TestInMemoryOutage(t *testing.T) {
	net := memoryNet(t)
	l := NewInMemory(net)
	sponsor := seededSponsor(t, l)
	SetUnavailable(l, true)

	_, err := l.LoadAccount(context.Background(), sponsor.Address())
	require.ErrorIs(t, err, ErrUnavailable)

	hist := l.PaymentsHistory(context.Background(), sponsor.Address(), 5)
	require.True(t, hist.Failed)
	require.Empty(t, hist.Records)

	SetUnavailable(l, false)
	_, err = l.LoadAccount(context.Background(), sponsor.Address())
	require.NoError(t, err)
}

func TestInMemoryConcurrentSubmitsConsumeSequenceOnce(t *testing.T) {
	net := memoryNet(t)
	l := NewInMemory(net)
	b := txbuild.New(net)
	sponsor := seededSponsor(t, l)

	acc, err := l.LoadAccount(context.Background(), sponsor.Address())
	require.NoError(t, err)

	const n = 8
	txs := make([]*txnbuild.Transaction, n)
	for i := range txs {
		tx, err := b.Payment(txbuild.Source{AccountID: acc.ID, Sequence: acc.Sequence}, sponsor.Address(), "1", "XLM")
		require.NoError(t, err)
		txs[i], err = tx.Sign(net.Passphrase, sponsor)
		require.NoError(t, err)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, tx := range txs {
		wg.Add(1)
		go func(tx *txnbuild.Transaction) {
			defer wg.Done()
			if _, err := l.Submit(context.Background(), tx); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(tx)
	}
	wg.Wait()
	require.Equal(t, 1, ok)
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, DefaultHistoryLimit, ClampLimit(0, 50))
	require.Equal(t, DefaultHistoryLimit, ClampLimit(-3, 50))
	require.Equal(t, 7, ClampLimit(7, 50))
	require.Equal(t, 50, ClampLimit(500, 50))
	require.Equal(t, MaxHistoryLimit, ClampLimit(500, 0))
}
