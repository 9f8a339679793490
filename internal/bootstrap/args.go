package bootstrap

import (
	"github.com/spf13/cobra"
)

// Args is the parsed command line, mirroring the exact short flags the
// SPANK launcher plugin invokes the daemon with (-j/-c/-a/-t), plus the
// daemon's own output-prefix and foreground flags.
type Args struct {
	JobID       string
	CPUs        string
	ArrayJobID  string
	ArrayTask   string
	OutputPath  string
	Foreground  bool
	ConfigPath  string
}

// ParseArgs builds a cobra command tree around rawArgs (typically
// os.Args[1:]) and returns the parsed Args. Unknown flags abort parsing
// with an error, matching the external interface's "unknown parameters
// abort startup" requirement -- cobra's default FParseErrWhitelist
// (zero value) already rejects them.
func ParseArgs(rawArgs []string) (Args, error) {
	var a Args

	cmd := &cobra.Command{
		Use:           "spsd",
		Short:         "Per-job resource profiling daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&a.JobID, "job", "j", "", "job id")
	flags.StringVarP(&a.CPUs, "cpus", "c", "", "cpu count")
	flags.StringVarP(&a.ArrayJobID, "array-job", "a", "", "array job id")
	flags.StringVarP(&a.ArrayTask, "array-task", "t", "", "array task id")
	flags.StringVarP(&a.OutputPath, "out", "o", "", "output directory prefix")
	flags.BoolVarP(&a.Foreground, "foreground", "f", false, "run in the foreground instead of daemonizing")
	flags.StringVar(&a.ConfigPath, "config", "", "path to an optional sps-config.yml")

	cmd.SetArgs(rawArgs)
	if err := cmd.Execute(); err != nil {
		return Args{}, err
	}
	return a, nil
}
