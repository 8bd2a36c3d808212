package devwatch

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/quickserve/pos-device-access/internal/client"
)

type options struct {
	baseURL    string
	token      string
	locationID string
	interval   time.Duration
}

// NewRootCommand builds the devwatch CLI: a live terminal view of the
// session table for one location. Requires a manager session token.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "devwatch",
		Short: "Watch live device sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.token == "" {
				return fmt.Errorf("a manager session token is required (--token)")
			}
			api := client.NewAPIClient(opts.baseURL)
			m := newModel(api, opts.token, opts.locationID, opts.interval)
			_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&opts.token, "token", "", "manager session token")
	cmd.Flags().StringVar(&opts.locationID, "location", "", "filter by location id")
	cmd.Flags().DurationVar(&opts.interval, "interval", 2*time.Second, "poll interval")
	return cmd
}
