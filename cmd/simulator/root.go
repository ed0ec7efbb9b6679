package main

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/config"
)

type globalOptions struct {
	apiURL   string
	user     string
	password string
	timeout  time.Duration
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "simulator",
		Short: "Drive the bengkel API through realistic repair jobs",
		Long: `simulator logs in to the bengkel API and exercises it over HTTP.

  simulator seed              create paint shop materials and stock them
  simulator run --jobs 5      walk jobs from intake to a closed WO
  simulator watch             print live change events`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			if opts.verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.apiURL, "api", config.GetEnv("API_BASE_URL", "http://localhost:8080"), "API base URL")
	f.StringVarP(&opts.user, "user", "u", config.GetEnv("SIM_USER", "admin"), "username or email of a Manager account")
	f.StringVarP(&opts.password, "password", "p", config.GetEnv("SIM_PASSWORD", ""), "account password")
	f.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log every request")

	cmd.AddCommand(newRunCmd(opts), newSeedCmd(opts), newWatchCmd(opts))
	return cmd
}

// connect logs in and returns an authenticated client.
func (o *globalOptions) connect(cmd *cobra.Command) (*apiClient, error) {
	c := newAPIClient(o.apiURL, o.timeout)
	if err := c.login(cmd.Context(), o.user, o.password); err != nil {
		return nil, err
	}
	return c, nil
}
