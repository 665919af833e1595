package services

import (
	"errors"
	"testing"
	"time"
)

func TestSettleAllKeepsSuccessesAndFailures(t *testing.T) {
	boom := errors.New("boom")
	res := SettleAll(
		func() (int, error) { return 1, nil },
		func() (int, error) { return 0, boom },
		func() (int, error) { return 3, nil },
	)
	if len(res.Results) != 2 {
		t.Fatalf("Results = %v", res.Results)
	}
	if len(res.Failures) != 1 || !errors.Is(res.Failures[0], boom) {
		t.Fatalf("Failures = %v", res.Failures)
	}
}

func TestSettleAllPreservesTaskOrder(t *testing.T) {
	// Die zuerst gestartete Aufgabe endet zuletzt; die Ergebnisreihenfolge
	// folgt trotzdem der Aufgabenreihenfolge.
	res := SettleAll(
		func() (string, error) { time.Sleep(20 * time.Millisecond); return "a", nil },
		func() (string, error) { return "b", nil },
	)
	if len(res.Results) != 2 || res.Results[0] != "a" || res.Results[1] != "b" {
		t.Fatalf("Results = %v, erwartet [a b]", res.Results)
	}
}

func TestSettleAllEmpty(t *testing.T) {
	res := SettleAll[int]()
	if len(res.Results) != 0 || len(res.Failures) != 0 {
		t.Fatalf("leerer Fan-Out muss leer bleiben: %+v", res)
	}
}
