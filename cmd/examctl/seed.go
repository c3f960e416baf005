package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/mind-engage/mindengage-assessment/internal/exam"
)

// fixture is the seed file format. Categories load first so questions can
// reference them; exams before the applications that schedule them.
type fixture struct {
	Categories   []exam.Category    `json:"categories"`
	Questions    []exam.Question    `json:"questions"`
	Exams        []exam.Exam        `json:"exams"`
	Applications []exam.Application `json:"applications"`
}

func seed(ctx context.Context, store *exam.SQLStore, companyID, path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fx fixture
	if err := json.Unmarshal(buf, &fx); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, c := range fx.Categories {
		if err := store.PutCategory(ctx, companyID, c); err != nil {
			return fmt.Errorf("category %s: %w", c.ID, err)
		}
	}
	for _, q := range fx.Questions {
		if err := store.PutQuestion(ctx, companyID, q); err != nil {
			return fmt.Errorf("question %s: %w", q.ID, err)
		}
	}
	for _, e := range fx.Exams {
		if err := store.PutExam(ctx, companyID, e); err != nil {
			return fmt.Errorf("exam %s: %w", e.ID, err)
		}
	}
	for _, a := range fx.Applications {
		if err := store.PutApplication(ctx, companyID, a); err != nil {
			return fmt.Errorf("application %s: %w", a.ID, err)
		}
	}
	log.Printf("[examctl] seeded %d categories, %d questions, %d exams, %d applications",
		len(fx.Categories), len(fx.Questions), len(fx.Exams), len(fx.Applications))
	return nil
}
