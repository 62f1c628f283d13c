package txexec

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"faillapop/go-client/internal/provider"
	"faillapop/go-client/internal/testutil/walletfake"
	"faillapop/go-client/pkg/models"
)

const txHash = "0x2222222222222222222222222222222222222222222222222222222222222222"

func fastBudgets() Budgets {
	return Budgets{
		Submission:   100 * time.Millisecond,
		Confirmation: 200 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}
}

func acceptedSubmit(ctx context.Context) (string, error) {
	return txHash, nil
}

func confirmAfter(f *walletfake.Fake, pendingPolls int32) {
	var polls int32
	f.Handle(provider.MethodGetTransactionReceipt, func(context.Context, []any) (any, error) {
		if atomic.AddInt32(&polls, 1) <= pendingPolls {
			return nil, nil
		}
		return map[string]any{"status": "0x1", "transactionHash": txHash}, nil
	})
}

func TestExecuteConfirmed(t *testing.T) {
	fake := walletfake.New()
	confirmAfter(fake, 1)
	e := New(fake, fastBudgets(), nil, nil)

	out := e.Execute(context.Background(), models.IntentList, acceptedSubmit)
	if out.Status != models.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", out.Status)
	}
	if out.TxRef != txHash {
		t.Fatalf("tx ref = %q", out.TxRef)
	}
}

func TestExecuteRejectedByUser(t *testing.T) {
	e := New(walletfake.New(), fastBudgets(), nil, nil)
	out := e.Execute(context.Background(), models.IntentPurchase, func(context.Context) (string, error) {
		return "", &provider.Error{Code: provider.CodeUserRejected, Message: "User rejected the request"}
	})
	if out.Status != models.StatusRejected {
		t.Fatalf("status = %s, want rejected", out.Status)
	}
}

func TestExecuteRevertReasonPassthrough(t *testing.T) {
	e := New(walletfake.New(), fastBudgets(), nil, nil)
	out := e.Execute(context.Background(), models.IntentPurchase, func(context.Context) (string, error) {
		return "", &provider.Error{Code: provider.CodeInternal, Message: "execution reverted: Price mismatch"}
	})
	if out.Status != models.StatusReverted {
		t.Fatalf("status = %s, want reverted", out.Status)
	}
	if out.Reason != "Price mismatch" {
		t.Fatalf("reason = %q, want verbatim remote reason", out.Reason)
	}
}

func TestExecuteRevertWithoutReason(t *testing.T) {
	e := New(walletfake.New(), fastBudgets(), nil, nil)
	out := e.Execute(context.Background(), models.IntentPurchase, func(context.Context) (string, error) {
		return "", &provider.Error{Code: provider.CodeInternal, Message: "execution reverted"}
	})
	if out.Status != models.StatusReverted || out.Reason != "" {
		t.Fatalf("got %s/%q, want generic revert marker", out.Status, out.Reason)
	}
}

func TestExecuteUnreachable(t *testing.T) {
	e := New(walletfake.New(), fastBudgets(), nil, nil)
	out := e.Execute(context.Background(), models.IntentList, func(context.Context) (string, error) {
		return "", provider.ErrUnreachable
	})
	if out.Status != models.StatusUnreachable {
		t.Fatalf("status = %s, want unreachable", out.Status)
	}
}

func TestExecuteLocalPreconditionFailure(t *testing.T) {
	e := New(walletfake.New(), fastBudgets(), nil, nil)
	cause := errors.New("item is already sold")
	out := e.Execute(context.Background(), models.IntentPurchase, func(context.Context) (string, error) {
		return "", cause
	})
	if out.Status != models.StatusReverted {
		t.Fatalf("status = %s, want reverted", out.Status)
	}
	if out.Reason != cause.Error() {
		t.Fatalf("reason = %q", out.Reason)
	}
}

func TestExecuteSubmissionTimeout(t *testing.T) {
	e := New(walletfake.New(), fastBudgets(), nil, nil)
	out := e.Execute(context.Background(), models.IntentList, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if out.Status != models.StatusTimedOut {
		t.Fatalf("status = %s, want timedOut", out.Status)
	}
	if out.Stage != StageSubmission {
		t.Fatalf("stage = %s, want submission", out.Stage)
	}
}

func TestExecuteConfirmationTimeoutDoesNotBlockNextSubmission(t *testing.T) {
	fake := walletfake.New()
	fake.Returns(provider.MethodGetTransactionReceipt, nil) // never mined
	e := New(fake, fastBudgets(), nil, nil)

	out := e.Execute(context.Background(), models.IntentPurchase, acceptedSubmit)
	if out.Status != models.StatusTimedOut {
		t.Fatalf("status = %s, want timedOut, not reverted", out.Status)
	}
	if out.Stage != StageConfirmation {
		t.Fatalf("stage = %s, want confirmation", out.Stage)
	}

	// A stale pending attempt is a normal precondition; the next intent
	// from the same account must still resolve.
	confirmAfter(fake, 0)
	next := e.Execute(context.Background(), models.IntentPurchase, acceptedSubmit)
	if next.Status != models.StatusConfirmed {
		t.Fatalf("subsequent submission resolved %s, want confirmed", next.Status)
	}
}

func TestExecuteRevertedOnChain(t *testing.T) {
	fake := walletfake.New()
	fake.Returns(provider.MethodGetTransactionReceipt, map[string]any{"status": "0x0", "transactionHash": txHash})
	e := New(fake, fastBudgets(), nil, nil)

	out := e.Execute(context.Background(), models.IntentPurchase, acceptedSubmit)
	if out.Status != models.StatusReverted {
		t.Fatalf("status = %s, want reverted", out.Status)
	}
}

func TestPendingTableRecordsTerminalStatusOnce(t *testing.T) {
	fake := walletfake.New()
	confirmAfter(fake, 0)
	e := New(fake, fastBudgets(), nil, nil)

	e.Execute(context.Background(), models.IntentList, acceptedSubmit)
	pending := e.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending table has %d entries, want 1", len(pending))
	}
	p := pending[0]
	if p.Status != models.StatusConfirmed || p.TxRef != txHash {
		t.Fatalf("pending entry %+v", p)
	}
	if p.Kind != models.IntentList || p.ID == "" || p.SubmittedAt.IsZero() {
		t.Fatalf("pending entry missing bookkeeping: %+v", p)
	}
}

func TestTimeoutMessageIsNotAFailure(t *testing.T) {
	out := Outcome{Status: models.StatusTimedOut, Stage: StageConfirmation}
	msg := out.Message()
	if msg == "" || msg == "transaction failed" {
		t.Fatalf("message = %q", msg)
	}
	if want := "outcome unknown"; !strings.Contains(msg, want) {
		t.Fatalf("timeout message %q should say %q", msg, want)
	}
}
