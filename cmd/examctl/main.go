package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-assessment/internal/attempt"
	"github.com/mind-engage/mindengage-assessment/internal/config"
	"github.com/mind-engage/mindengage-assessment/internal/db"
	"github.com/mind-engage/mindengage-assessment/internal/events"
	"github.com/mind-engage/mindengage-assessment/internal/exam"
	"github.com/mind-engage/mindengage-assessment/internal/lock"
	"github.com/mind-engage/mindengage-assessment/internal/tenancy"
)

const usageText = `usage: examctl [-company ID] [-as USER] <command> [args]

commands:
  migrate                                 create or update the schema
  seed <file.json>                        load categories, questions, exams and applications
  resolve <exam>                          preview the questions an exam's rules produce
  start <application> <student>           start or resume an attempt
  view <application> <student>            show the student's attempts and the current one
  answer <attempt> <question>=<value>...  autosave answers (question is the attempt question id)
  submit <attempt> [<question>=<value>...] save answers and submit
  grade <attempt-question> <score> [feedback]
  feedback <attempt> <text> [tag,tag...]
  reset <attempt>                         drop questions and timestamps, keep the attempt
  delete <attempt>                        delete the attempt
  events <attempt>                        print the attempt's event log
`

func main() {
	cfg := config.Load()

	fs := flag.NewFlagSet("examctl", flag.ExitOnError)
	company := fs.String("company", cfg.CompanyID, "company (tenant) id")
	subject := fs.String("as", "", "acting user: the student, or the grader for grade")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	_ = fs.Parse(os.Args[1:])
	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// --- DB ---
	drv, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	octx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(octx, drv, cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()
	store := exam.NewSQLStore(dbh, string(drv))

	if args[0] == "migrate" {
		log.Printf("[examctl] schema up to date (%s)", drv)
		return
	}
	if strings.TrimSpace(*company) == "" {
		log.Fatalf("no company: pass -company or set COMPANY_ID")
	}

	// --- Locks ---
	var locker lock.Locker = lock.NewLocal()
	if cfg.LockDriver == "redis" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		locker = lock.NewRedis(client, cfg.LockTTL)
	}

	eng := attempt.New(store, attempt.WithLocker(locker), attempt.WithLockWait(cfg.LockWait))
	ctx = tenancy.WithScope(ctx, tenancy.Scope{CompanyID: *company, SubjectID: *subject})

	if err := run(ctx, eng, store, args); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func run(ctx context.Context, eng *attempt.Engine, store *exam.SQLStore, args []string) error {
	cmd, rest := args[0], args[1:]
	need := func(n int) error {
		if len(rest) < n {
			return fmt.Errorf("expected %d argument(s), see examctl -h", n)
		}
		return nil
	}
	sc, _ := tenancy.FromContext(ctx)

	switch cmd {
	case "seed":
		if err := need(1); err != nil {
			return err
		}
		return seed(ctx, store, sc.CompanyID, rest[0])

	case "resolve":
		if err := need(1); err != nil {
			return err
		}
		out, err := eng.ResolveRules(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(out)

	case "start":
		if err := need(2); err != nil {
			return err
		}
		id, err := eng.StartOrResume(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil

	case "view":
		if err := need(2); err != nil {
			return err
		}
		v, err := eng.AttemptView(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		return printJSON(v)

	case "answer", "submit":
		if err := need(1); err != nil {
			return err
		}
		answers, err := parseAnswers(rest[1:])
		if err != nil {
			return err
		}
		return eng.SubmitAnswers(ctx, rest[0], answers, cmd == "submit")

	case "grade":
		if err := need(2); err != nil {
			return err
		}
		score, err := strconv.ParseFloat(rest[1], 64)
		if err != nil {
			return fmt.Errorf("score: %w", err)
		}
		var feedback *string
		if len(rest) > 2 {
			feedback = &rest[2]
		}
		return eng.GradeQuestion(ctx, rest[0], score, feedback)

	case "feedback":
		if err := need(2); err != nil {
			return err
		}
		var tags []string
		if len(rest) > 2 {
			tags = strings.Split(rest[2], ",")
		}
		return eng.SendFeedback(ctx, rest[0], rest[1], tags)

	case "reset", "delete":
		if err := need(1); err != nil {
			return err
		}
		return eng.DeleteCorrection(ctx, rest[0], cmd == "reset")

	case "events":
		if err := need(1); err != nil {
			return err
		}
		evs, err := events.ByKey(ctx, store.DB(), sc.CompanyID, rest[0])
		if err != nil {
			return err
		}
		return printJSON(evs)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// parseAnswers reads "id=value" pairs.
func parseAnswers(pairs []string) ([]attempt.Answer, error) {
	out := make([]attempt.Answer, 0, len(pairs))
	for _, p := range pairs {
		id, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, errors.New("answers are <question>=<value>")
		}
		out = append(out, attempt.Answer{ID: id, Value: value})
	}
	return out, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
