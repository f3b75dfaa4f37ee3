package uiops

import (
	"testing"

	"imcore/internal/account"
	"imcore/internal/protoplugin"
)

func TestOpsConnectionProgressCallbackInvoked(t *testing.T) {
	var gotNum, gotDenom int
	ops := Ops{
		Account: AccountUiOps{
			ConnectionProgress: func(acct *account.Account, state protoplugin.State, numerator, denominator int) {
				gotNum, gotDenom = numerator, denominator
			},
		},
	}

	acct := account.New(account.Key{ProtocolID: "xmpp", Username: "u"})
	conn := protoplugin.NewConnection(acct, nil)
	conn.OnProgress(func(state protoplugin.State, numerator, denominator int) {
		ops.Account.ConnectionProgress(acct, state, numerator, denominator)
	})

	conn.Transition(protoplugin.StateConnecting)

	if gotDenom == 0 {
		t.Fatal("expected a non-zero progress denominator")
	}
	if gotNum == 0 {
		t.Fatal("expected a non-zero progress numerator once past Offline")
	}
}

func TestOpsZeroValueIsSafeToLeaveUnset(t *testing.T) {
	var ops Ops
	if ops.Xfer.RequestAccept != nil {
		t.Fatal("expected zero-value Ops to leave every callback nil")
	}
}
