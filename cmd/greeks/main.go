package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/greeksengine/pkg/config"
)

// BootstrapName 服务名
const BootstrapName = "greeks"

func main() {
	if err := NewCmdGreeks(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootOptions 所有子命令共享的选项
type rootOptions struct {
	configPath string
	in         io.Reader
	out        io.Writer
}

// loadConfig 读取配置文件、环境变量与命令行参数
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(o.configPath, cmd.Flags())
}

// NewCmdGreeks 根命令
func NewCmdGreeks(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{in: in, out: out}
	cmd := &cobra.Command{
		Use:           BootstrapName,
		Short:         "Greeks sensitivity engine",
		Long:          "Compute, cross-verify and aggregate option Greeks by bump-and-revalue or automatic differentiation.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to TOML config file")
	config.RegisterFlags(flags)

	cmd.AddCommand(
		NewCmdServe(opts),
		NewCmdCompute(opts),
		NewCmdVerify(opts),
		NewCmdPortfolio(opts),
	)
	return cmd
}
