package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omnisched/internal/appointment"
	"omnisched/internal/config"
	"omnisched/internal/ics"
	appLog "omnisched/internal/log"
	"omnisched/internal/model"
	"omnisched/internal/query"
	"omnisched/internal/remind"
	"omnisched/internal/schedule"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	initConfig bool
	logLevel   string
	logFormat  string
	icsIn      string
	icsOut     string
	days       int
	next       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one query and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	appLog.SetOutput(stderr)

	flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg := config.DefaultConfig()
	if flags.configPath != "" && !flags.initConfig {
		cfg, err = config.Load(flags.configPath)
		if err != nil {
			fmt.Fprintf(stderr, "omnisched: %v\n", err)
			return 1
		}
	}
	cfg.ApplyEnv()
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}
	configureLogging(cfg)

	appLog.Info("omnisched starting",
		"config_path", flags.configPath,
		"ics_in", flags.icsIn,
		"ics_out", flags.icsOut,
		"days", flags.days,
		"next", flags.next,
	)

	if flags.initConfig {
		if flags.configPath == "" {
			fmt.Fprintln(stderr, "omnisched: -init-config requires -config")
			return 2
		}
		if err := config.Save(flags.configPath, cfg); err != nil {
			appLog.Error("failed to write config", err, "config_path", flags.configPath)
			fmt.Fprintf(stderr, "omnisched: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "wrote %s\n", flags.configPath)
		return 0
	}

	book, err := loadBook(ctx, cfg, flags.icsIn)
	if err != nil {
		appLog.Error("failed to load appointments", err)
		fmt.Fprintf(stderr, "omnisched: %v\n", err)
		return 1
	}

	date, err := query.Prompt(stdin, stdout)
	if err != nil {
		appLog.Error("failed to read date", err)
		fmt.Fprintf(stderr, "omnisched: %v\n", err)
		return 1
	}

	if err := writeResult(stdout, book, date, flags.days); err != nil {
		appLog.Error("failed to write report", err)
		fmt.Fprintf(stderr, "omnisched: %v\n", err)
		return 1
	}

	if flags.next {
		writeUpcoming(stdout, book.All(), date)
	}

	if flags.icsOut != "" {
		if err := exportICS(flags.icsOut, book.All(), date); err != nil {
			appLog.Error("ics export failed", err, "path", flags.icsOut)
			fmt.Fprintf(stderr, "omnisched: %v\n", err)
			return 1
		}
	}

	appLog.Info("omnisched exiting")
	return 0
}

func parseFlags(args []string, stderr io.Writer) (flagConfig, error) {
	var cfg flagConfig

	fs := flag.NewFlagSet("omnisched", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.configPath, "config", "", "Path to YAML config (default: built-in demo appointments)")
	fs.BoolVar(&cfg.initConfig, "init-config", false, "Write the default config to -config and exit")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	fs.StringVar(&cfg.logFormat, "log-format", "", "Log format: text or json (overrides config)")
	fs.StringVar(&cfg.icsIn, "ics-in", "", "Load appointments from an iCalendar file or URL instead of the config")
	fs.StringVar(&cfg.icsOut, "ics-out", "", "Write the appointments as iCalendar to this path after the query")
	fs.IntVar(&cfg.days, "days", 1, "Number of consecutive days to report, starting at the entered date")
	fs.BoolVar(&cfg.next, "next", false, "Also print each appointment's next firing after the entered date")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func configureLogging(cfg *config.Config) {
	level, err := appLog.ParseLevel(cfg.LogLevel)
	if err != nil {
		appLog.SetLevel(appLog.LevelError)
		appLog.Error("invalid log level; using error", err, "log_level", cfg.LogLevel)
	} else {
		appLog.SetLevel(level)
	}
	appLog.SetFormat(cfg.LogFormat)
}

func loadBook(ctx context.Context, cfg *config.Config, icsIn string) (*schedule.Book, error) {
	if icsIn == "" {
		return schedule.FromConfig(cfg.Appointments)
	}

	body, err := ics.ReadSource(ctx, icsIn)
	if err != nil {
		return nil, err
	}
	appts, err := ics.Parse(body)
	if err != nil {
		return nil, err
	}
	return schedule.New(appts...), nil
}

// writeResult prints the single-date report, or an agenda when days > 1.
// The single-date path uses the entered integers as-is; the agenda walks
// real calendar days from the normalized start date.
func writeResult(w io.Writer, book *schedule.Book, date model.Date, days int) error {
	if days <= 1 {
		return book.WriteReport(w, date.Year, date.Month, date.Day)
	}

	start := date.Time(time.UTC)
	res, err := ics.Expand(book.All(), ics.ExpandConfig{
		Location:   time.UTC,
		RangeStart: start,
		RangeEnd:   start.AddDate(0, 0, days-1),
		// One occurrence per day at most, so days never truncates.
		MaxOccurrencesPerAppointment: days,
	})
	if err != nil {
		return err
	}
	if len(res.Truncated) > 0 {
		return fmt.Errorf("agenda: %d appointment(s) exceeded the occurrence cap", len(res.Truncated))
	}
	return schedule.WriteAgenda(w, res.Occurrences, model.DateOf(start), days)
}

func writeUpcoming(w io.Writer, appts []appointment.Appointment, date model.Date) {
	fmt.Fprintf(w, "Next occurrences after %s:\n", date)
	for _, r := range remind.Upcoming(appts, date.Time(time.UTC)) {
		fmt.Fprintf(w, "%s - %s\n", r.At.Format("Mon Jan 2 2006 15:04"), r.Appointment.Format())
	}
	fmt.Fprintln(w)
}

func exportICS(path string, appts []appointment.Appointment, date model.Date) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ics.Export(f, appts, date.Time(time.UTC)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
