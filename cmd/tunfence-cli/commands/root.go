// Package commands cmd/tunfence-cli/commands/root.go
package commands

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"

	"github.com/skycoin/skywire-utilities/pkg/buildinfo"

	"github.com/tunfence/tunfence/internal/api"
	"github.com/tunfence/tunfence/internal/tfconfig"
	"github.com/tunfence/tunfence/pkg/command"
	"github.com/tunfence/tunfence/pkg/vpn"
)

var (
	ipcName    string
	httpAddr   string
	cmdTimeout time.Duration
)

func init() {
	RootCmd.PersistentFlags().StringVar(&ipcName, "ipc", tfconfig.DefaultIPCName, "name of the daemon's IPC socket\033[0m")
	RootCmd.PersistentFlags().StringVar(&httpAddr, "addr", tfconfig.DefaultHTTPAddr, "address of the daemon's status API\033[0m")
	RootCmd.PersistentFlags().DurationVar(&cmdTimeout, "timeout", 5*time.Second, "time to wait for the daemon\033[0m")

	RootCmd.AddCommand(startCmd, stopCmd, statusCmd)

	var helpflag bool
	RootCmd.PersistentFlags().BoolVarP(&helpflag, "help", "h", false, "help for "+RootCmd.Use)
	RootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	RootCmd.PersistentFlags().MarkHidden("help") //nolint
}

// RootCmd is the CLI's root command.
var RootCmd = &cobra.Command{
	Use:                   "tunfence-cli",
	Short:                 "Command line interface for the tunfence daemon",
	SilenceErrors:         true,
	SilenceUsage:          true,
	DisableSuggestions:    true,
	DisableFlagsInUseLine: true,
	Version:               buildinfo.Version(),
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tunnel",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := command.Send(ipcName, vpn.CommandStart, cmdTimeout); err != nil {
			return fmt.Errorf("failed to send start command: %w", err)
		}
		fmt.Println("start acknowledged")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the tunnel",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := command.Send(ipcName, vpn.CommandStop, cmdTimeout); err != nil {
			return fmt.Errorf("failed to send stop command: %w", err)
		}
		fmt.Println("stop acknowledged")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the tunnel's lifecycle status",
	RunE: func(_ *cobra.Command, _ []string) error {
		client := &http.Client{Timeout: cmdTimeout}
		resp, err := client.Get(fmt.Sprintf("http://%s/api/status", httpAddr))
		if err != nil {
			return fmt.Errorf("failed to reach daemon at %s: %w", httpAddr, err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				log.Printf("Failed to close response body: %v", err)
			}
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("daemon returned %s", resp.Status)
		}

		var sr api.StatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}
		fmt.Println(sr.Status)
		return nil
	},
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
