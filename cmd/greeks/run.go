package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/greeksengine/internal/greeks/application"
	"github.com/wyfcoding/greeksengine/pkg/metrics"
)

const requestExample = `	# Delta and gamma of an at-the-money call
	$ echo '{"kernel":{"type":"black_scholes","strike":100},
	         "params":{"spot":100,"volatility":0.2,"maturity":1,"rate":0.05},
	         "sensitivities":["delta","gamma"]}' | greeks %[1]s

	# Same request read from a file, reverse mode
	$ greeks %[1]s -f request.json --mode=reverse`

const portfolioExample = `	# Delta of a two-leg book, four workers, five second budget
	$ greeks portfolio -f book.json --workers=4 --budget=5s`

// requestOptions 一次性请求子命令的选项
type requestOptions struct {
	*rootOptions
	file   string
	indent bool
}

func (o *requestOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.file, "file", "f", "-", "request JSON file, - reads stdin")
	cmd.Flags().BoolVar(&o.indent, "indent", true, "indent JSON output")
}

// decode 读取并解码请求
func (o *requestOptions) decode(dst any) error {
	r := o.in
	if o.file != "-" {
		f, err := os.Open(o.file)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func (o *requestOptions) print(v any) error {
	enc := json.NewEncoder(o.out)
	if o.indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// run 加载配置、组装服务并执行 fn
func (o *requestOptions) run(cmd *cobra.Command, fn func(ctx context.Context, svc *application.GreeksService) (any, error)) error {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}
	// 命令行输出只保留结果，日志写到 stderr
	cfg.Logger.Output = "stderr"
	if err := initLogger(cfg); err != nil {
		return err
	}
	app, cleanup, err := newApp(cmd.Context(), cfg, metrics.NopCollector{})
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := fn(cmd.Context(), app.Service)
	if err != nil {
		return err
	}
	return o.print(out)
}

func newRequestCommand(opts *rootOptions, use, short, example string, fn func(o *requestOptions, ctx context.Context, svc *application.GreeksService) (any, error)) *cobra.Command {
	o := &requestOptions{rootOptions: opts}
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Example: example,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, svc *application.GreeksService) (any, error) {
				return fn(o, ctx, svc)
			})
		},
	}
	o.addFlags(cmd)
	return cmd
}

// NewCmdCompute 计算单笔希腊字母
func NewCmdCompute(opts *rootOptions) *cobra.Command {
	return newRequestCommand(opts, "compute", "Compute Greeks for one pricing call", fmt.Sprintf(requestExample, "compute"),
		func(o *requestOptions, ctx context.Context, svc *application.GreeksService) (any, error) {
			var req application.ComputeCommand
			if err := o.decode(&req); err != nil {
				return nil, err
			}
			return svc.Compute(ctx, req)
		})
}

// NewCmdVerify 交叉校验单笔希腊字母
func NewCmdVerify(opts *rootOptions) *cobra.Command {
	return newRequestCommand(opts, "verify", "Cross-verify Greeks between differentiation methods", fmt.Sprintf(requestExample, "verify"),
		func(o *requestOptions, ctx context.Context, svc *application.GreeksService) (any, error) {
			var req application.VerifyCommand
			if err := o.decode(&req); err != nil {
				return nil, err
			}
			return svc.Verify(ctx, req)
		})
}

// NewCmdPortfolio 组合希腊字母汇总
func NewCmdPortfolio(opts *rootOptions) *cobra.Command {
	return newRequestCommand(opts, "portfolio", "Aggregate Greeks over a portfolio of trades", portfolioExample,
		func(o *requestOptions, ctx context.Context, svc *application.GreeksService) (any, error) {
			var req application.PortfolioCommand
			if err := o.decode(&req); err != nil {
				return nil, err
			}
			return svc.RunPortfolio(ctx, req)
		})
}
