package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/client"
)

type opsFlags struct {
	host    string
	timeout time.Duration
	depth   int
	budget  int
}

func addOpsFlags(cmd *cobra.Command, f *opsFlags) {
	cmd.Flags().StringVar(&f.host, "host", "", "device address, host:port (required)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Second, "per-request I/O timeout")
	cmd.Flags().IntVar(&f.depth, "depth", 1, "pipeline depth (concurrent in-flight groups)")
	cmd.Flags().IntVar(&f.budget, "budget", 0, "Multiple Service Packet byte budget (0 disables aggregation)")
	cmd.MarkFlagRequired("host")
}

func newReadCmd() *cobra.Command {
	f := &opsFlags{}
	cmd := &cobra.Command{
		Use:   "read TAG [TAG...]",
		Short: "Read one or more tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(f, args)
		},
	}
	addOpsFlags(cmd, f)
	return cmd
}

func newWriteCmd() *cobra.Command {
	f := &opsFlags{}
	cmd := &cobra.Command{
		Use:   "write EXPR [EXPR...]",
		Short: "Write one or more tags, each expressed as TAG=(TYPE)value[,value...]",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(f, args)
		},
	}
	addOpsFlags(cmd, f)
	return cmd
}

func runOps(f *opsFlags, exprs []string) error {
	ops := make([]*client.Operation, 0, len(exprs))
	for _, expr := range exprs {
		op, err := client.ParseOperation(expr)
		if err != nil {
			return fmt.Errorf("parse %q: %w", expr, err)
		}
		ops = append(ops, op)
	}

	conn := client.NewConnector(f.host)
	if err := conn.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout*time.Duration(len(ops)+1))
	defer cancel()

	results := conn.Operate(ctx, ops, f.depth, f.budget, f.timeout)
	printResults(exprs, results)

	for _, r := range results {
		if r.Err != nil || r.Status != cip.StatusSuccess {
			os.Exit(1)
		}
	}
	return nil
}

func printResults(exprs []string, results []client.Result) {
	fmt.Println(styleHeader.Render(fmt.Sprintf("%-30s %-10s %s", "OPERATION", "STATUS", "VALUE")))
	for i, r := range results {
		expr := exprs[i]
		if r.Op != nil && r.Op.Description != "" {
			expr = r.Op.Description
		}
		status := statusCell(r)
		value := valueCell(r)
		fmt.Printf("%-30s %-10s %s\n", expr, status, value)
	}
}

func statusCell(r client.Result) string {
	if r.Err != nil {
		return styleErr.Render("I/O-error")
	}
	if r.Status != cip.StatusSuccess {
		return styleErr.Render(fmt.Sprintf("0x%02X", byte(r.Status)))
	}
	return styleOK.Render("ok")
}

func valueCell(r client.Result) string {
	if r.Err != nil {
		return styleDim.Render(r.Err.Error())
	}
	if len(r.Value) == 0 {
		return styleDim.Render("-")
	}
	parts := make([]string, len(r.Value))
	for i, v := range r.Value {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, ",")
}
