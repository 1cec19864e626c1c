package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerbook/internal/backup"
	"github.com/dvloznov/ledgerbook/internal/config"
	"github.com/dvloznov/ledgerbook/internal/connectivity"
	"github.com/dvloznov/ledgerbook/internal/domain"
	"github.com/dvloznov/ledgerbook/internal/identity"
	"github.com/dvloznov/ledgerbook/internal/kv"
	"github.com/dvloznov/ledgerbook/internal/logger"
	"github.com/dvloznov/ledgerbook/internal/remote"
	"github.com/dvloznov/ledgerbook/internal/store"
	syncengine "github.com/dvloznov/ledgerbook/internal/sync"
)

// Settings keys the CLI uses to keep a session across invocations.
const (
	settingCurrentUser = "current_user"
	settingIDToken     = "id_token"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	app, err := newApp(context.Background(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer app.close()

	switch os.Args[1] {
	case "customer":
		app.runCustomer(os.Args[2:])
	case "tx":
		app.runTx(os.Args[2:])
	case "stats":
		app.runStats()
	case "settings":
		app.runSettings(os.Args[2:])
	case "login":
		app.runLogin(os.Args[2:])
	case "logout":
		app.runLogout()
	case "sync":
		app.runSync(os.Args[2:])
	case "backup":
		app.runBackup(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("ledgerbook - offline-first bookkeeping")
	fmt.Println("\nUsage:")
	fmt.Println("  ledgerbook <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  customer  Manage customers (list, add, rm, show)")
	fmt.Println("  tx        Manage transactions (list, add, rm)")
	fmt.Println("  stats     Show income/expense/balance summary")
	fmt.Println("  settings  Get or set device settings")
	fmt.Println("  login     Sign in and merge cloud data")
	fmt.Println("  logout    Return to guest mode")
	fmt.Println("  sync      push | pull | refresh | status | watch")
	fmt.Println("  backup    Export a snapshot to the backup bucket, or restore one")
	fmt.Println("  help      Show this help message")
}

type app struct {
	ctx     context.Context
	log     zerolog.Logger
	cfg     config.Config
	kv      kv.Store
	ids     *identity.Context
	store   *store.Store
	remote  remote.Client
	checker connectivity.Checker
	engine  *syncengine.Engine
}

// storedToken reads the bearer token the login command persisted.
type storedToken struct {
	store *store.Store
}

func (t *storedToken) IDToken(ctx context.Context) (string, error) {
	token := t.store.Setting(ctx, settingIDToken)
	if token == "" {
		return "", errors.New("no id token stored; run login with -token")
	}
	return token, nil
}

func newApp(ctx context.Context, log zerolog.Logger) (*app, error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, err
	}

	var kvs kv.Store
	switch cfg.Backend {
	case "sqlite":
		kvs, err = kv.OpenSQLite(filepath.Join(cfg.DataDir, "ledger.db"))
	default:
		kvs, err = kv.OpenFile(cfg.DataDir)
	}
	if err != nil {
		return nil, err
	}

	ids := identity.NewContext()
	st := store.New(kvs, ids, log)

	// Restore the session identity before the engine subscribes, so a plain
	// restart does not re-run the login merge.
	if user := st.Setting(ctx, settingCurrentUser); user != "" {
		ids.SetIdentity(user)
	}

	a := &app{ctx: ctx, log: log, cfg: cfg, kv: kvs, ids: ids, store: st}

	if cfg.ProjectID != "" {
		rc, err := remote.New(ctx, remote.Options{
			ProjectID:       cfg.ProjectID,
			Transport:       cfg.Transport,
			CredentialsFile: cfg.CredentialsFile,
			Tokens:          &storedToken{store: st},
		})
		if err != nil {
			return nil, err
		}
		a.remote = rc
		a.checker = connectivity.NewProbe()
		a.engine = syncengine.New(st, rc, ids, a.checker, syncengine.Config{
			Platform: runtime.GOOS,
			Debounce: cfg.Debounce(),
		}, log)
	}
	return a, nil
}

func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.remote != nil {
		a.remote.Close()
	}
	a.kv.Close()
}

// pushAfterWrite runs one synchronous push after a mutating command. The CLI
// process is short-lived, so it cannot wait out the debounce timer the way
// the long-running app does.
func (a *app) pushAfterWrite() {
	if a.engine == nil {
		return
	}
	result := a.engine.PushAll(a.ctx)
	if result.Status == syncengine.StatusPending {
		fmt.Println("Offline - will sync later")
	}
}

func (a *app) runCustomer(args []string) {
	if len(args) == 0 {
		a.listCustomers()
		return
	}
	switch args[0] {
	case "list":
		a.listCustomers()
	case "add":
		fs := flag.NewFlagSet("customer add", flag.ExitOnError)
		name := fs.String("name", "", "customer name (required)")
		number := fs.String("number", "", "contact number")
		fs.Parse(args[1:])
		customer, err := a.store.AddCustomer(a.ctx, store.CustomerInput{Name: *name, Number: *number})
		if err != nil {
			a.log.Fatal().Err(err).Msg("Failed to add customer")
		}
		fmt.Printf("Added customer %s (%s)\n", customer.Name, customer.ID)
		a.pushAfterWrite()
	case "rm":
		fs := flag.NewFlagSet("customer rm", flag.ExitOnError)
		id := fs.String("id", "", "customer id (required)")
		fs.Parse(args[1:])
		if err := a.store.DeleteCustomer(a.ctx, *id); err != nil {
			a.log.Fatal().Err(err).Msg("Failed to delete customer")
		}
		fmt.Println("Deleted customer and linked transactions")
		a.pushAfterWrite()
	case "show":
		fs := flag.NewFlagSet("customer show", flag.ExitOnError)
		id := fs.String("id", "", "customer id (required)")
		fs.Parse(args[1:])
		a.showCustomer(*id)
	default:
		fmt.Fprintf(os.Stderr, "Unknown customer subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func (a *app) listCustomers() {
	customers := a.store.ListCustomers(a.ctx)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tNUMBER\tBALANCE")
	for _, c := range customers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Number, c.Balance.StringFixed(2))
	}
	w.Flush()
}

func (a *app) showCustomer(id string) {
	transactions := a.store.CustomerTransactions(a.ctx, id)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tAMOUNT\tDESCRIPTION\tDATE")
	for _, t := range transactions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Type, t.Amount.StringFixed(2), t.Description, t.CreatedAt)
	}
	w.Flush()
}

func (a *app) runTx(args []string) {
	if len(args) == 0 {
		a.listTransactions()
		return
	}
	switch args[0] {
	case "list":
		a.listTransactions()
	case "add":
		fs := flag.NewFlagSet("tx add", flag.ExitOnError)
		amount := fs.String("amount", "", "amount (required, non-negative)")
		txType := fs.String("type", "", "income or expense (required)")
		desc := fs.String("desc", "", "description")
		customerID := fs.String("customer", "", "linked customer id")
		fs.Parse(args[1:])
		value, err := decimal.NewFromString(*amount)
		if err != nil {
			a.log.Fatal().Str("amount", *amount).Msg("Invalid amount")
		}
		transaction, err := a.store.AddTransaction(a.ctx, store.TransactionInput{
			Amount:      value,
			Type:        domain.TransactionType(*txType),
			Description: *desc,
			CustomerID:  *customerID,
		})
		if err != nil {
			a.log.Fatal().Err(err).Msg("Failed to add transaction")
		}
		fmt.Printf("Added %s %s (%s)\n", transaction.Type, transaction.Amount.StringFixed(2), transaction.ID)
		a.pushAfterWrite()
	case "rm":
		fs := flag.NewFlagSet("tx rm", flag.ExitOnError)
		id := fs.String("id", "", "transaction id (required)")
		fs.Parse(args[1:])
		if err := a.store.DeleteTransaction(a.ctx, *id); err != nil {
			a.log.Fatal().Err(err).Msg("Failed to delete transaction")
		}
		fmt.Println("Deleted transaction")
		a.pushAfterWrite()
	default:
		fmt.Fprintf(os.Stderr, "Unknown tx subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func (a *app) listTransactions() {
	transactions := a.store.ListTransactions(a.ctx)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tAMOUNT\tDESCRIPTION\tCUSTOMER\tDATE")
	for _, t := range transactions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Type, t.Amount.StringFixed(2), t.Description, t.CustomerName, t.CreatedAt)
	}
	w.Flush()
}

func (a *app) runStats() {
	stats := a.store.Stats(a.ctx)
	fmt.Printf("Income:            %s\n", stats.TotalIncome.StringFixed(2))
	fmt.Printf("Expenses:          %s\n", stats.TotalExpenses.StringFixed(2))
	fmt.Printf("Balance:           %s\n", stats.TotalBalance.StringFixed(2))
	fmt.Printf("Customer balances: %s\n", stats.TotalCustomerBalance.StringFixed(2))
	fmt.Printf("Customers:         %d\n", stats.TotalCustomers)
	fmt.Printf("Transactions:      %d\n", stats.TotalTransactions)
}

func (a *app) runSettings(args []string) {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	key := fs.String("key", "", "setting key (app_theme, app_language, app_currency, auth_method)")
	value := fs.String("value", "", "value to set; omit to read")
	fs.Parse(args)
	if *key == "" {
		fs.Usage()
		os.Exit(1)
	}
	if *value == "" {
		fmt.Println(a.store.Setting(a.ctx, *key))
		return
	}
	if err := a.store.SetSetting(a.ctx, *key, *value); err != nil {
		a.log.Fatal().Err(err).Msg("Failed to write setting")
	}
}

func (a *app) runLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	user := fs.String("user", "", "authenticated user id (required)")
	token := fs.String("token", "", "identity token for the REST transport")
	fs.Parse(args)
	if *user == "" {
		fs.Usage()
		os.Exit(1)
	}
	if *token != "" {
		if err := a.store.SetSetting(a.ctx, settingIDToken, *token); err != nil {
			a.log.Fatal().Err(err).Msg("Failed to store token")
		}
	}
	if err := a.store.SetSetting(a.ctx, settingCurrentUser, *user); err != nil {
		a.log.Fatal().Err(err).Msg("Failed to store session")
	}
	// The engine observes this transition and merges cloud data if the
	// local collections are empty.
	a.ids.SetIdentity(*user)
	fmt.Printf("Signed in as %s\n", *user)
}

func (a *app) runLogout() {
	a.store.DeleteSetting(a.ctx, settingCurrentUser)
	a.store.DeleteSetting(a.ctx, settingIDToken)
	a.ids.SetIdentity("")
	fmt.Println("Signed out; using guest data")
}

func (a *app) runSync(args []string) {
	if a.engine == nil {
		fmt.Fprintln(os.Stderr, "Sync is not configured; set project_id in the config")
		os.Exit(1)
	}
	sub := "status"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "push":
		result := a.engine.PushAll(a.ctx)
		switch result.Status {
		case syncengine.StatusSynced:
			fmt.Println("Sync succeeded")
		case syncengine.StatusPending:
			fmt.Println("Offline - will sync later")
		case syncengine.StatusNotSignedIn:
			fmt.Println("Guest mode - nothing to sync")
		case syncengine.StatusInProgress:
			fmt.Println("Sync already in progress")
		case syncengine.StatusFailed:
			fmt.Printf("Sync failed: %v\n", result.Err)
		}
	case "pull":
		snapshot, err := a.engine.PullAll(a.ctx)
		if err != nil {
			a.log.Fatal().Err(err).Msg("Pull failed")
		}
		if snapshot == nil {
			fmt.Println("No cloud data found yet")
			return
		}
		fmt.Printf("Remote snapshot: %d customers, %d transactions (synced %s)\n",
			len(snapshot.Customers), len(snapshot.Transactions), snapshot.LastSyncedAt)
	case "refresh":
		result, err := a.engine.ForceRefresh(a.ctx)
		switch {
		case errors.Is(err, syncengine.ErrOffline):
			fmt.Println("Offline - cannot refresh")
		case errors.Is(err, syncengine.ErrNotSignedIn):
			fmt.Println("Guest mode - nothing to refresh")
		case errors.Is(err, syncengine.ErrNoRemoteData):
			fmt.Println("No cloud data found yet")
		case err != nil:
			fmt.Printf("Sync failed: %v\n", err)
			os.Exit(1)
		default:
			fmt.Printf("Refreshed %d customers, %d transactions\n", result.Customers, result.Transactions)
		}
	case "status":
		state := a.engine.Status(a.ctx)
		fmt.Printf("Online: %v  Pending: %v  InProgress: %v  LastSynced: %s\n",
			state.Online, state.Pending, state.InProgress, state.LastSyncedAt)
	case "watch":
		a.runSyncWatch(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown sync subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// runSyncWatch keeps the process alive, polling connectivity and feeding
// transitions into the engine so a reconnect flushes any pending sync.
// Local writes from other ledgerbook invocations still land through their own
// processes; this mode only services the connectivity-restoration path.
func (a *app) runSyncWatch(args []string) {
	fs := flag.NewFlagSet("sync watch", flag.ExitOnError)
	interval := fs.Duration("interval", 30*time.Second, "connectivity poll interval")
	fs.Parse(args)

	watcher := connectivity.NewWatcher(a.checker, *interval)
	watcher.Subscribe(a.engine.SetOnline)

	ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt)
	defer stop()
	fmt.Println("Watching connectivity; Ctrl-C to stop")
	watcher.Run(ctx)
}

func (a *app) runBackup(args []string) {
	if a.cfg.BackupBucket == "" {
		fmt.Fprintln(os.Stderr, "No backup bucket configured; set backup_bucket in the config")
		os.Exit(1)
	}
	bucket, err := backup.NewGCSBucket(a.ctx, a.cfg.BackupBucket)
	if err != nil {
		a.log.Fatal().Err(err).Msg("Failed to open backup bucket")
	}
	defer bucket.Close()
	exporter := backup.NewExporter(a.store, a.ids, bucket, runtime.GOOS, a.log)

	if len(args) > 0 && args[0] == "restore" {
		fs := flag.NewFlagSet("backup restore", flag.ExitOnError)
		object := fs.String("object", "", "backup object name (required)")
		fs.Parse(args[1:])
		if *object == "" {
			fs.Usage()
			os.Exit(1)
		}
		snapshot, err := exporter.Restore(a.ctx, *object)
		if err != nil {
			a.log.Fatal().Err(err).Msg("Restore failed")
		}
		fmt.Printf("Restored %d customers, %d transactions\n",
			len(snapshot.Customers), len(snapshot.Transactions))
		return
	}

	object, err := exporter.Export(a.ctx)
	if err != nil {
		a.log.Fatal().Err(err).Msg("Backup failed")
	}
	fmt.Printf("Backup uploaded: %s\n", object)
}
