package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvoigt/decledger/internal/model"
)

var (
	recordFile         string
	recordSession      string
	recordPath         string
	recordInput        string
	recordOutput       string
	recordConfidence   float64
	recordViolations   []string
	recordProcessingMS int
)

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordFile, "file", "f", "", "Read the decision record as JSON from a file (- for stdin)")
	recordCmd.Flags().StringVar(&recordSession, "session", "", "Session identifier")
	recordCmd.Flags().StringVar(&recordPath, "path", "", "Decision path, e.g. full_evaluation/approved")
	recordCmd.Flags().StringVar(&recordInput, "input", "", "Sanitized input summary")
	recordCmd.Flags().StringVar(&recordOutput, "output", "", "Sanitized output summary")
	recordCmd.Flags().Float64Var(&recordConfidence, "confidence", 1.0, "Decision confidence in [0,1]")
	recordCmd.Flags().StringSliceVar(&recordViolations, "violation", nil, "Violation tag (repeatable)")
	recordCmd.Flags().IntVar(&recordProcessingMS, "processing-ms", 0, "Upstream processing time in milliseconds")
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Append a decision record to the ledger",
	Long: "Validates, scores and chains one decision record. The record is\n" +
		"given either as JSON via --file (use - for stdin) or assembled\n" +
		"from the individual flags. Prints the chained entry as JSON.",
	RunE: runRecord,
}

func runRecord(cmd *cobra.Command, args []string) error {
	rec, err := decisionFromFlags()
	if err != nil {
		return err
	}

	l, _, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	entry, err := l.RecordDecision(cmd.Context(), rec)
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(entry, "", "  ")
	fmt.Println(string(out))
	return nil
}

func decisionFromFlags() (*model.DecisionRecord, error) {
	if recordFile != "" {
		var data []byte
		var err error
		if recordFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(recordFile)
		}
		if err != nil {
			return nil, fmt.Errorf("read decision record: %w", err)
		}
		var rec model.DecisionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parse decision record: %w", err)
		}
		return &rec, nil
	}

	return &model.DecisionRecord{
		SessionID:      recordSession,
		DecisionPath:   recordPath,
		InputSummary:   recordInput,
		OutputSummary:  recordOutput,
		Confidence:     recordConfidence,
		Violations:     recordViolations,
		ProcessingTime: time.Duration(recordProcessingMS) * time.Millisecond,
	}, nil
}
