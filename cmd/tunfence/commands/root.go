// Package commands cmd/tunfence/commands/root.go
package commands

import (
	"context"
	"log"
	"os"
	"sync/atomic"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"

	"github.com/skycoin/skywire-utilities/pkg/buildinfo"
	"github.com/skycoin/skywire-utilities/pkg/cmdutil"
	"github.com/skycoin/skywire-utilities/pkg/logging"

	"github.com/tunfence/tunfence/internal/api"
	"github.com/tunfence/tunfence/internal/netwatch"
	"github.com/tunfence/tunfence/internal/tfconfig"
	"github.com/tunfence/tunfence/internal/tunfilter"
	"github.com/tunfence/tunfence/internal/tunworker"
	"github.com/tunfence/tunfence/pkg/command"
	"github.com/tunfence/tunfence/pkg/notify"
	"github.com/tunfence/tunfence/pkg/prefs"
	"github.com/tunfence/tunfence/pkg/statuspub"
	"github.com/tunfence/tunfence/pkg/vpn"
)

var (
	configFile string
	tag        string
)

func init() {
	RootCmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file\033[0m")
	RootCmd.Flags().StringVar(&tag, "tag", "tunfence", "logging tag\033[0m")
	var helpflag bool
	RootCmd.PersistentFlags().BoolVarP(&helpflag, "help", "h", false, "help for "+RootCmd.Use)
	RootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	RootCmd.PersistentFlags().MarkHidden("help") //nolint
}

// RootCmd is the daemon's root CLI command.
var RootCmd = &cobra.Command{
	Use:   "tunfence",
	Short: "Connectivity-aware tunnel filtering daemon",
	Long: `
	┌┬┐┬ ┬┌┐┌┌─┐┌─┐┌┐┌┌─┐┌─┐
	 │ │ ││││├┤ ├┤ ││││  ├┤
	 ┴ └─┘┘└┘└  └─┘┘└┘└─┘└─┘`,
	SilenceErrors:         true,
	SilenceUsage:          true,
	DisableSuggestions:    true,
	DisableFlagsInUseLine: true,
	Version:               buildinfo.Version(),
	Run: func(_ *cobra.Command, _ []string) {
		if _, err := buildinfo.Get().WriteTo(os.Stdout); err != nil {
			log.Printf("Failed to output build info: %v", err)
		}
		runDaemon()
	},
}

// bridgeReporter forwards worker status reports into the controller's
// bridge. The bridge exists only once the controller does, so the target
// is bound after construction, before any goroutine runs.
type bridgeReporter struct {
	bridge *vpn.StatusBridge
}

func (r *bridgeReporter) Send(status vpn.Status) {
	r.bridge.Send(status)
}

func runDaemon() {
	mLog := logging.NewMasterLogger()
	logger := mLog.PackageLogger(tag)

	conf, err := tfconfig.ReadFile(logger, configFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config.")
	}
	mLog.SetLevel(conf.Level())

	ctx, cancel := cmdutil.SignalContext(context.Background(), logger)
	defer cancel()

	broadcaster := statuspub.NewBroadcaster(mLog.PackageLogger("status_broadcaster"))
	defer func() {
		if err := broadcaster.Close(); err != nil {
			logger.WithError(err).Debug("Status broadcaster already closed.")
		}
	}()

	presenters := []notify.Presenter{notify.NewLogPresenter(mLog.PackageLogger("notify"))}
	if conf.WebhookURL != "" {
		presenters = append(presenters, notify.NewWebhookPresenter(mLog.PackageLogger("webhook"), conf.WebhookURL))
	}
	notifier := notify.NewNotifier(mLog.PackageLogger("notify"), presenters...)

	store := prefs.NewStore(mLog.PackageLogger("prefs"), conf.StateDir)

	var filtered uint64
	engine := tunfilter.New(mLog.PackageLogger("tunnel_engine"), tunfilter.Config{
		Name: conf.TunName,
		Addr: conf.TunAddr,
	}, func(packet []byte) {
		// Traffic routed into the fence is read and discarded.
		if n := atomic.AddUint64(&filtered, 1); n%10000 == 0 {
			logger.WithField("packets", n).Debug("Filtering traffic.")
		}
	})

	reporter := new(bridgeReporter)
	worker := tunworker.New(mLog.PackageLogger("tunnel_worker"), tunworker.Config{}, engine, reporter)

	watcher := netwatch.New(mLog.PackageLogger("netwatch"), conf.TunName)

	ctrl := vpn.NewController(mLog.PackageLogger("vpn_controller"), worker, store, notifier, broadcaster, watcher)
	reporter.bridge = ctrl.Bridge()

	go worker.Run(ctx)

	cmdSrv := command.NewServer(mLog.PackageLogger("command_server"), conf.IPCName, ctrl)
	go func() {
		if err := cmdSrv.ListenAndServe(ctx); err != nil {
			logger.WithError(err).Error("Command server failed.")
			cancel()
		}
	}()

	statusAPI := api.New(mLog.PackageLogger("status_api"), broadcaster)
	go func() {
		if err := statusAPI.ListenAndServe(ctx, conf.HTTPAddr); err != nil {
			logger.WithError(err).Error("Status API failed.")
			cancel()
		}
	}()

	if err := ctrl.Run(ctx); err != nil {
		logger.WithError(err).Fatal("Controller stopped serving.")
	}
}

// Execute executes root CLI command.
func Execute() {
	cc.Init(&cc.Config{
		RootCmd:         RootCmd,
		Headings:        cc.HiBlue + cc.Bold,
		Commands:        cc.HiBlue + cc.Bold,
		CmdShortDescr:   cc.HiBlue,
		Example:         cc.HiBlue + cc.Italic,
		ExecName:        cc.HiBlue + cc.Bold,
		Flags:           cc.HiBlue + cc.Bold,
		FlagsDescr:      cc.HiBlue,
		NoExtraNewlines: true,
		NoBottomNewline: true,
	})
	if err := RootCmd.Execute(); err != nil {
		log.Fatal("Failed to execute command: ", err)
	}
}
