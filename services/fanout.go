package services

import "sync"

// Settled bündelt die Ergebnisse eines Fan-Outs: erfolgreiche Resultate
// in Aufgabenreihenfolge plus die aufgetretenen Fehler. Fehler einzelner
// Aufgaben lassen den Fan-Out nie als Ganzes scheitern; sie bleiben für
// das Logging sichtbar.
type Settled[T any] struct {
	Results  []T
	Failures []error
}

// SettleAll führt alle Aufgaben parallel aus und wartet auf jede.
func SettleAll[T any](tasks ...func() (T, error)) Settled[T] {
	type slot struct {
		value T
		err   error
		ok    bool
	}
	slots := make([]slot, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task func() (T, error)) {
			defer wg.Done()
			v, err := task()
			if err != nil {
				slots[i] = slot{err: err}
				return
			}
			slots[i] = slot{value: v, ok: true}
		}(i, task)
	}
	wg.Wait()

	var out Settled[T]
	for _, s := range slots {
		if s.ok {
			out.Results = append(out.Results, s.value)
		} else {
			out.Failures = append(out.Failures, s.err)
		}
	}
	return out
}
