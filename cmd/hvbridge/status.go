package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/hvbridge/internal/ipc"
	"go.klb.dev/hvbridge/internal/wire"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local daemon's sync state",
		Long: `Displays the state of the local hvbridge daemon: its role, whether the
sync link is up, and when the clipboard last changed. Talks to the daemon
over the IPC socket.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runStatus(v) },
	}

	cmd.Flags().Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)

	return cmd
}

func runStatus(v *viper.Viper) error {
	conn, err := ipc.Dial()
	if err != nil {
		return fmt.Errorf("no hvbridge daemon running (%s): %w", ipc.SocketPath(), err)
	}
	defer conn.Close()

	wc := wire.New(conn)
	if _, err := conn.Write([]byte(ipc.VerbStatus + "\n")); err != nil {
		return fmt.Errorf("status request: %w", err)
	}
	line, err := wc.ReadLine(5 * time.Second)
	if err != nil {
		return fmt.Errorf("status response: %w", err)
	}

	if v.GetBool("json") {
		var pretty map[string]any
		if err := json.Unmarshal([]byte(line), &pretty); err != nil {
			return fmt.Errorf("status decode: %w", err)
		}
		enc, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	st, err := ipc.DecodeStatus(line)
	if err != nil {
		return err
	}
	printStatus(st)
	return nil
}

func printStatus(st ipc.Status) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Role:\t%s\n", st.Role)
	fmt.Fprintf(w, "State:\t%s\n", st.State)
	if st.Role == "client" && st.Peer != "" {
		fmt.Fprintf(w, "Peer:\t%s\n", st.Peer)
	}
	if st.Role == "serve" {
		fmt.Fprintf(w, "Clients:\t%d\n", st.Peers)
	}
	if !st.LastChange.IsZero() {
		fmt.Fprintf(w, "Last change:\t%s (%s ago)\n",
			st.LastChange.UTC().Format(time.RFC3339), fmtAge(st.LastChange))
	}
	fmt.Fprintf(w, "Version:\t%s\n", st.Version)
	_ = w.Flush()
}

// fmtAge renders a rough human duration since t.
func fmtAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
