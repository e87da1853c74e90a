package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"classbook/internal/cli"
	"classbook/internal/core"
	"classbook/internal/log"
	"classbook/internal/report"
	"classbook/internal/services"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run prints a read-only view of the persisted ledger. Nothing is saved.
func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("classbook-report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	envFile := fs.String("env", "", "Path to a .env file (default: ./.env if present)")
	export := fs.Bool("export", false, "Write the stored snapshot as JSON instead of a summary (not combinable with -day or -xlsx)")
	dayFlag := fs.String("day", "", "Also list the sessions held on this date (YYYY-MM-DD)")
	xlsxPath := fs.String("xlsx", "", "Also write the ledger as an Excel workbook to this path")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *export && (*dayFlag != "" || *xlsxPath != "") {
		return errors.New("-export writes only JSON and cannot be combined with -day or -xlsx")
	}

	var day core.Date
	if *dayFlag != "" {
		d, err := core.ParseDate(*dayFlag)
		if err != nil {
			return fmt.Errorf("invalid -day: %w", err)
		}
		day = d
	}

	if *envFile != "" {
		cli.LoadEnvFile(*envFile)
	} else {
		cli.LoadEnvFile()
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(stderr, cfg.LogLevel).WithComponent(log.ComponentReport)

	ctx := context.Background()
	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer res.Close()

	svc := services.NewLedgerService(res.Store, logger, nil)
	if err := svc.Load(ctx); err != nil {
		return err
	}

	if *export {
		b, err := core.EncodeSnapshot(svc.Snapshot())
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		_, err = fmt.Fprintln(stdout, string(b))
		return err
	}

	if *xlsxPath != "" {
		if err := writeWorkbook(*xlsxPath, svc.Snapshot()); err != nil {
			return err
		}
		logger.InfoContext(ctx, "Workbook written", log.FieldPath, *xlsxPath)
	}

	printSummary(stdout, svc)
	if !day.IsZero() {
		printDay(stdout, svc, day)
	}
	return nil
}

func writeWorkbook(path string, snap core.Snapshot) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()
	return report.WriteWorkbook(f, snap)
}

func printSummary(w io.Writer, svc *services.LedgerService) {
	students := svc.Students()
	sessions := svc.Sessions()
	payments := svc.Payments()

	completed := 0
	for _, s := range sessions {
		if s.Completed {
			completed++
		}
	}
	var received core.Money
	for _, p := range payments {
		received.Cents += p.Amount.Cents
	}

	fmt.Fprintf(w, "Students: %d\n", len(students))
	fmt.Fprintf(w, "Sessions: %d (%d completed)\n", len(sessions), completed)
	fmt.Fprintf(w, "Payments: %d totalling %s\n", len(payments), received)

	if len(students) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBALANCE\tTAKEN\tSESSIONS\tPAID\tJOINED")
	for _, st := range students {
		var paid core.Money
		for _, p := range svc.PaymentsForStudent(st.ID) {
			paid.Cents += p.Amount.Cents
		}
		balance := fmt.Sprint(st.Balance)
		if st.Balance < 0 {
			balance += " (owes)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			st.Name, balance, st.TotalClassesTaken, len(svc.SessionsForStudent(st.ID)), paid, st.JoinedDate)
	}
	tw.Flush()
}

func printDay(w io.Writer, svc *services.LedgerService, day core.Date) {
	sessions := svc.SessionsOn(day)
	fmt.Fprintf(w, "\n%s %s: %d session(s)\n", day.Weekday(), day, len(sessions))
	for _, s := range sessions {
		names := []string{}
		if attendees, err := svc.Attendees(s.ID); err == nil {
			for _, st := range attendees {
				names = append(names, st.Name)
			}
		}
		status := ""
		if s.Completed {
			status = " [done]"
		}
		fmt.Fprintf(w, "  %s-%s  %s%s\n", s.StartTime, s.EndTime, strings.Join(names, ", "), status)
	}
}
