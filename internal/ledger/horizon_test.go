package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/base"
	"github.com/stellar/go/protocols/horizon/operations"
	"github.com/stellar/go/support/render/problem"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHorizonLoadAccount(t *testing.T) {
	id := keypair.MustRandom().Address()
	m := &horizonclient.MockClient{}
	m.On("AccountDetail", horizonclient.AccountRequest{AccountID: id}).Return(horizon.Account{
		AccountID: id,
		Sequence:  77,
		Balances: []horizon.Balance{
			{Balance: "12.5000000", Asset: base.Asset{Type: "native"}},
			{Balance: "3.0000000", Asset: base.Asset{Type: "credit_alphanum4", Code: "USDC", Issuer: "GISSUER"}},
			{Balance: "1.0000000", Asset: base.Asset{Type: "liquidity_pool_shares"}},
		},
	}, nil)

	h := NewHorizonWithClient(m, 50, nil)
	acc, err := h.LoadAccount(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, int64(77), acc.Sequence)
	require.Equal(t, map[string]string{"XLM": "12.5000000", "USDC": "3.0000000"}, acc.Balances)
	m.AssertExpectations(t)
}

func TestHorizonLoadAccountNotFound(t *testing.T) {
	m := &horizonclient.MockClient{}
	m.On("AccountDetail", mock.Anything).Return(horizon.Account{}, &horizonclient.Error{
		Problem: problem.P{Type: "https://stellar.org/horizon-errors/not_found", Status: 404},
	})

	_, err := NewHorizonWithClient(m, 50, nil).LoadAccount(context.Background(), "GX")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestHorizonLoadAccountTransportFailure(t *testing.T) {
	m := &horizonclient.MockClient{}
	m.On("AccountDetail", mock.Anything).Return(horizon.Account{}, errors.New("dial tcp: connection refused"))

	_, err := NewHorizonWithClient(m, 50, nil).LoadAccount(context.Background(), "GX")
	require.ErrorIs(t, err, ErrUnavailable)
}

func signedPayment(t *testing.T) *txnbuild.Transaction {
	t.Helper()
	kp := keypair.MustRandom()
	account := txnbuild.NewSimpleAccount(kp.Address(), 1)
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

func TestHorizonSubmitRejectedCarriesResultCodes(t *testing.T) {
	m := &horizonclient.MockClient{}
	m.On("SubmitTransactionWithOptions", mock.Anything, horizonclient.SubmitTxOpts{SkipMemoRequiredCheck: true}).
		Return(horizon.Transaction{}, &horizonclient.Error{Problem: problem.P{
			Title:  "Transaction Failed",
			Status: 400,
			Extras: map[string]interface{}{
				"result_codes": map[string]interface{}{
					"transaction": "tx_failed",
					"operations":  []string{"op_underfunded"},
				},
			},
		}})

	_, err := NewHorizonWithClient(m, 50, nil).Submit(context.Background(), signedPayment(t))
	var rejected *SubmitError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, "tx_failed", rejected.TransactionCode)
	require.Equal(t, []string{"op_underfunded"}, rejected.OperationCodes)
	require.Contains(t, err.Error(), "op_underfunded")
}

func TestHorizonSubmitSuccess(t *testing.T) {
	m := &horizonclient.MockClient{}
	m.On("SubmitTransactionWithOptions", mock.Anything, mock.Anything).
		Return(horizon.Transaction{Hash: "abc123", Ledger: 9}, nil)

	res, err := NewHorizonWithClient(m, 50, nil).Submit(context.Background(), signedPayment(t))
	require.NoError(t, err)
	require.Equal(t, Submission{Hash: "abc123", Ledger: 9}, res)
}

func TestHorizonPaymentsHistoryClampsAndMaps(t *testing.T) {
	id := keypair.MustRandom().Address()
	closed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var page operations.OperationsPage
	page.Embedded.Records = []operations.Operation{
		operations.Payment{
			Base:   operations.Base{ID: "2", Type: "payment", TransactionHash: "h2", TransactionSuccessful: true, LedgerCloseTime: closed},
			Asset:  base.Asset{Type: "credit_alphanum4", Code: "USDC"},
			From:   "GFROM",
			To:     id,
			Amount: "4.0000000",
		},
		operations.CreateAccount{
			Base:            operations.Base{ID: "1", Type: "create_account", TransactionHash: "h1", TransactionSuccessful: true},
			StartingBalance: "2.0000000",
			Funder:          "GSPONSOR",
			Account:         id,
		},
	}

	m := &horizonclient.MockClient{}
	m.On("Payments", horizonclient.OperationRequest{ForAccount: id, Limit: 50, Order: horizonclient.OrderDesc}).Return(page, nil)

	hist := NewHorizonWithClient(m, 50, nil).PaymentsHistory(context.Background(), id, 1000)
	require.False(t, hist.Failed)
	require.Len(t, hist.Records, 2)
	require.Equal(t, "USDC", hist.Records[0].Asset)
	require.Equal(t, closed, hist.Records[0].CreatedAt)
	require.Equal(t, "XLM", hist.Records[1].Asset)
	require.Equal(t, "GSPONSOR", hist.Records[1].From)
	m.AssertExpectations(t)
}

func TestHorizonPaymentsHistoryDegradesOnFailure(t *testing.T) {
	m := &horizonclient.MockClient{}
	m.On("Payments", mock.Anything).Return(operations.OperationsPage{}, errors.New("timeout"))

	hist := NewHorizonWithClient(m, 50, nil).PaymentsHistory(context.Background(), "GX", 10)
	require.True(t, hist.Failed)
	require.NotNil(t, hist.Records)
	require.Empty(t, hist.Records)
}
