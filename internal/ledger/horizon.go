package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/operations"
	"github.com/stellar/go/txnbuild"

	"github.com/polo-core/polo_core/internal/logging"
)

// Horizon implements Client against a Horizon server.
type Horizon struct {
	client   horizonclient.ClientInterface
	maxLimit int
	logger   *slog.Logger
}

// NewHorizon builds a Horizon-backed client. timeout bounds every HTTP call.
func NewHorizon(url string, timeout time.Duration, maxLimit int, logger *slog.Logger) *Horizon {
	client := &horizonclient.Client{
		HorizonURL: url,
		HTTP:       &http.Client{Timeout: timeout},
	}
	return NewHorizonWithClient(client, maxLimit, logger)
}

// NewHorizonWithClient wraps an existing horizonclient implementation.
func NewHorizonWithClient(client horizonclient.ClientInterface, maxLimit int, logger *slog.Logger) *Horizon {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Horizon{client: client, maxLimit: maxLimit, logger: logger}
}

// LoadAccount fetches the account's sequence number and balances.
func (h *Horizon) LoadAccount(ctx context.Context, accountID string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	detail, err := h.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("%w: load account: %w", ErrUnavailable, err)
	}
	seq, err := detail.GetSequenceNumber()
	if err != nil {
		return Account{}, fmt.Errorf("parse sequence: %w", err)
	}
	return Account{ID: detail.AccountID, Sequence: seq, Balances: balanceMap(detail.Balances)}, nil
}

// Submit sends a fully signed transaction.
func (h *Horizon) Submit(ctx context.Context, tx *txnbuild.Transaction) (Submission, error) {
	if err := ctx.Err(); err != nil {
		return Submission{}, err
	}
	resp, err := h.client.SubmitTransactionWithOptions(tx, horizonclient.SubmitTxOpts{SkipMemoRequiredCheck: true})
	if err != nil {
		return Submission{}, h.submitError(err)
	}
	return Submission{Hash: resp.Hash, Ledger: resp.Ledger}, nil
}

func (h *Horizon) submitError(err error) error {
	hErr := horizonclient.GetError(err)
	if hErr == nil {
		return fmt.Errorf("%w: submit: %w", ErrUnavailable, err)
	}
	rejected := &SubmitError{Detail: hErr.Problem.Title}
	if codes, codeErr := hErr.ResultCodes(); codeErr == nil && codes != nil {
		rejected.TransactionCode = codes.TransactionCode
		rejected.OperationCodes = codes.OperationCodes
	}
	h.logger.Warn("ledger rejected transaction",
		slog.String("tx_code", rejected.TransactionCode),
		slog.Any("op_codes", rejected.OperationCodes),
		slog.String("detail", rejected.Detail),
	)
	return rejected
}

// Balances maps asset symbol to balance for the account.
func (h *Horizon) Balances(ctx context.Context, accountID string) (map[string]string, error) {
	acc, err := h.LoadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return acc.Balances, nil
}

// PaymentsHistory returns the newest payments for the account. Transport
// failures are logged and reported through History.Failed.
func (h *Horizon) PaymentsHistory(ctx context.Context, accountID string, limit int) History {
	if ctx.Err() != nil {
		return History{Records: []Payment{}, Failed: true}
	}
	page, err := h.client.Payments(horizonclient.OperationRequest{
		ForAccount: accountID,
		Limit:      uint(ClampLimit(limit, h.maxLimit)),
		Order:      horizonclient.OrderDesc,
	})
	if err != nil {
		h.logger.Warn("payment history fetch failed", logging.Key("account", accountID), slog.Any("error", err))
		return History{Records: []Payment{}, Failed: true}
	}

	records := make([]Payment, 0, len(page.Embedded.Records))
	for _, rec := range page.Embedded.Records {
		if p, ok := paymentFromOperation(rec); ok {
			records = append(records, p)
		}
	}
	return History{Records: records}
}

func paymentFromOperation(op operations.Operation) (Payment, bool) {
	switch v := op.(type) {
	case operations.Payment:
		return Payment{
			ID:              v.Base.ID,
			Type:            v.Base.Type,
			TransactionHash: v.Base.TransactionHash,
			From:            v.From,
			To:              v.To,
			Amount:          v.Amount,
			Asset:           assetSymbol(v.Asset.Type, v.Asset.Code),
			CreatedAt:       v.Base.LedgerCloseTime,
			Successful:      v.Base.TransactionSuccessful,
		}, true
	case operations.CreateAccount:
		return Payment{
			ID:              v.Base.ID,
			Type:            v.Base.Type,
			TransactionHash: v.Base.TransactionHash,
			From:            v.Funder,
			To:              v.Account,
			Amount:          v.StartingBalance,
			Asset:           nativeSymbol,
			CreatedAt:       v.Base.LedgerCloseTime,
			Successful:      v.Base.TransactionSuccessful,
		}, true
	default:
		return Payment{}, false
	}
}

func balanceMap(balances []horizon.Balance) map[string]string {
	out := make(map[string]string, len(balances))
	for _, b := range balances {
		symbol := assetSymbol(b.Asset.Type, b.Asset.Code)
		if symbol == "" {
			continue
		}
		out[symbol] = b.Balance
	}
	return out
}

const nativeSymbol = "XLM"

func assetSymbol(assetType, code string) string {
	switch assetType {
	case "native":
		return nativeSymbol
	case "credit_alphanum4", "credit_alphanum12":
		return code
	default:
		return ""
	}
}
