package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mind-engage/rubricscore/internal/config"
	"github.com/mind-engage/rubricscore/internal/grading"
	"github.com/mind-engage/rubricscore/internal/logging"
	"github.com/mind-engage/rubricscore/internal/nli"
)

func main() {
	cfg := config.FromEnv()

	rubricPath := flag.String("rubric", "", "rubric file (.json, .yaml)")
	textPath := flag.String("text", "-", "extracted document text, - for stdin")
	topic := flag.String("topic", "", "assignment topic")
	topicDesc := flag.String("topic-desc", "", "assignment description")
	lang := flag.String("lang", cfg.HypothesisLang, "hypothesis language: en, es")
	validate := flag.Bool("validate", false, "only validate the rubric")
	timeout := flag.Duration("timeout", 15*time.Minute, "overall deadline including model load")
	level := flag.String("log-level", cfg.LogLevel, "debug, info, error")
	flag.Parse()

	logger := logging.NewWriter(*level, os.Stderr)
	if *rubricPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	rub, err := grading.LoadRubricFile(*rubricPath)
	if err != nil {
		logger.Fatal("rubric: %v", err)
	}
	if *validate {
		printJSON(map[string]any{"valid": true, "criteria": len(rub.Criteria)})
		return
	}

	text, err := readText(*textPath)
	if err != nil {
		logger.Fatal("text: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sc, err := nli.StartSidecar(ctx, nli.SidecarConfig{
		Python:    cfg.NLIPython,
		ScriptDir: cfg.NLIScriptDir,
		ModelName: cfg.ModelName,
		ModelPath: cfg.ModelPath,
		MaxLength: cfg.MaxLength,
	}, logger)
	if err != nil {
		logger.Fatal("%v: %v", nli.ErrModelUnavailable, err)
	}
	defer sc.Close()

	cfg.HypothesisLang = *lang
	engine, err := grading.NewEngine(sc, cfg.EngineOptions(logger)...)
	if err != nil {
		sc.Close()
		logger.Fatal("engine: %v", err)
	}

	rep, err := engine.Analyze(ctx, grading.Document{Text: text, Topic: *topic, TopicDescription: *topicDesc}, rub)
	if err != nil {
		sc.Close()
		logger.Fatal("grade: %v", err)
	}
	printJSON(rep)
}

func readText(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
