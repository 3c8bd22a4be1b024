package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"adwise/src/core/connection"
)

var connectCmd = &cobra.Command{
	Use:   "connect <instagram|youtube|whatsapp>",
	Short: "Connect a distribution platform",
	Example: `  adwise connect instagram --username brand --password secret
  adwise connect whatsapp --phone 9876543210`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <instagram|youtube|whatsapp>",
	Short: "Disconnect a distribution platform",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, err := connection.ParsePlatform(args[0])
		if err != nil {
			return err
		}

		tracker, closeFn, err := openTracker()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := tracker.Disconnect(platform); err != nil {
			return err
		}
		return printConnections(cmd, tracker)
	},
}

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Show connected platforms",
	RunE:  runConnections,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(connectionsCmd)

	connectCmd.Flags().String("username", "", "account username")
	connectCmd.Flags().String("password", "", "account password")
	connectCmd.Flags().String("phone", "", "whatsapp phone number")

	connectionsCmd.Flags().Bool("watch", false, "keep running and print every change")
}

func runConnect(cmd *cobra.Command, args []string) error {
	platform, err := connection.ParsePlatform(args[0])
	if err != nil {
		return err
	}

	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	phone, _ := cmd.Flags().GetString("phone")

	tracker, closeFn, err := openTracker()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := tracker.Connect(platform, connection.Credentials{
		Username:    username,
		Password:    password,
		PhoneNumber: phone,
	}); err != nil {
		return err
	}
	return printConnections(cmd, tracker)
}

func runConnections(cmd *cobra.Command, args []string) error {
	tracker, closeFn, err := openTracker()
	if err != nil {
		return err
	}
	defer closeFn()

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		return printConnections(cmd, tracker)
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	tracker.Start(ctx, func(record connection.Record) {
		writeRecord(cmd, record)
	})
	defer tracker.Stop()

	<-ctx.Done()
	return nil
}

func openTracker() (*connection.Tracker, func(), error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	tracker := connection.NewTracker(store,
		connection.WithRefreshInterval(viper.GetDuration("connections.refresh_interval")))
	return tracker, func() { closeStore(store) }, nil
}

func printConnections(cmd *cobra.Command, tracker *connection.Tracker) error {
	record, err := tracker.Snapshot()
	if err != nil {
		return err
	}
	writeRecord(cmd, record)
	return nil
}

func writeRecord(cmd *cobra.Command, record connection.Record) {
	out := cmd.OutOrStdout()
	for _, p := range connection.Platforms() {
		state := "not connected"
		if record.Connected(p) {
			state = "connected"
		}
		fmt.Fprintf(out, "%-10s %s\n", p, state)
	}
	fmt.Fprintf(out, "all connected: %t\n", record.AllConnected())
}
