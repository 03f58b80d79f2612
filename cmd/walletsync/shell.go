package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/unity-gaming/unity_wallet/internal/money"
	"github.com/unity-gaming/unity_wallet/internal/walletclient"
	"github.com/unity-gaming/unity_wallet/internal/walletsync"
)

const helpText = `commands:
  balance                 show the cached balance
  refresh                 reload the balance from the server
  add <amount>            start adding money
  method <card|upi>       confirm the payment method of a pending add
  cancel                  drop a pending add
  dismiss                 clear a failed operation
  withdraw <amount>       withdraw money
  tournaments             list tournaments
  enter <id>              pay the entry fee of a tournament
  wallet                  mount or unmount the wallet screen
  quit`

// shell runs one surface's commands against the shared Sync.
type shell struct {
	sync    *walletsync.Sync
	client  *walletclient.Client
	session *walletclient.Session
	out     io.Writer

	unmountScreen func()
}

// execute runs one command line and reports whether the session should end.
func (sh *shell) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	var err error
	switch strings.ToLower(fields[0]) {
	case "help", "?":
		fmt.Fprintln(sh.out, helpText)
	case "balance":
		fmt.Fprintf(sh.out, "Balance: %s\n", money.Format(sh.sync.Balance()))
	case "refresh":
		err = sh.sync.Refresh(ctx)
	case "add":
		var amount decimal.Decimal
		if amount, err = walletsync.ParseAmount(arg); err == nil {
			if err = sh.sync.RequestAddMoney(amount); err == nil {
				fmt.Fprintf(sh.out, "Adding %s. Choose a payment method: method card | method upi\n", money.Format(amount))
			}
		}
	case "method":
		method := walletsync.Method(strings.ToLower(arg))
		fmt.Fprintf(sh.out, "Processing payment via %s...\n", displayName(method))
		if err = sh.sync.ConfirmPaymentMethod(ctx, method); err == nil {
			fmt.Fprintf(sh.out, "Money added. New balance %s\n", money.Format(sh.sync.Balance()))
		}
	case "cancel":
		err = sh.sync.CancelPendingAdd()
	case "dismiss":
		sh.sync.Dismiss()
	case "withdraw":
		var amount decimal.Decimal
		if amount, err = walletsync.ParseAmount(arg); err == nil {
			if err = sh.sync.RequestWithdraw(ctx, amount); err == nil {
				fmt.Fprintf(sh.out, "Withdrew %s. New balance %s\n", money.Format(amount), money.Format(sh.sync.Balance()))
			}
		}
	case "tournaments":
		err = sh.listTournaments(ctx)
	case "enter":
		err = sh.enter(ctx, arg)
	case "wallet":
		sh.toggleScreen()
	case "quit", "exit":
		if err := sh.session.Logout(ctx); err != nil {
			fmt.Fprintf(sh.out, "logout: %s\n", walletsync.UserMessage(err))
		}
		return true
	default:
		fmt.Fprintf(sh.out, "unknown command %q, try help\n", fields[0])
	}

	if err != nil {
		fmt.Fprintln(sh.out, "Error:", walletsync.UserMessage(err))
	}
	return false
}

func (sh *shell) listTournaments(ctx context.Context) error {
	list, err := sh.client.Tournaments(ctx)
	if err != nil {
		return err
	}
	for _, t := range list {
		fmt.Fprintf(sh.out, "%3d  %-36s %-18s fee %-8s %s  %s\n", t.ID, t.Name, t.Game, money.Format(t.EntryFee), t.Participants, t.Status)
	}
	return nil
}

func (sh *shell) enter(ctx context.Context, id string) error {
	list, err := sh.client.Tournaments(ctx)
	if err != nil {
		return err
	}
	for _, t := range list {
		if fmt.Sprint(t.ID) != id {
			continue
		}
		if err := sh.sync.EnterTournament(ctx, id, t.EntryFee); err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "Registered for %s. New balance %s\n", t.Name, money.Format(sh.sync.Balance()))
		return nil
	}
	return fmt.Errorf("tournament %q not found", id)
}

// toggleScreen mounts a second surface, as opening the wallet screen does.
func (sh *shell) toggleScreen() {
	if sh.unmountScreen != nil {
		sh.unmountScreen()
		sh.unmountScreen = nil
		fmt.Fprintf(sh.out, "wallet screen closed (%d surfaces mounted)\n", sh.sync.Mounted())
		return
	}
	sh.unmountScreen = sh.sync.Mount()
	fmt.Fprintf(sh.out, "wallet screen open (%d surfaces mounted)\n", sh.sync.Mounted())
}

func displayName(m walletsync.Method) string {
	if name := m.DisplayName(); name != "" {
		return name
	}
	return string(m)
}
