package startup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
)

type recorder struct {
	events []string
}

func (r *recorder) dep(name string, requires []string, failures int) Func {
	return Func{
		Name:     name,
		Requires: requires,
		OnStart: func(context.Context) error {
			if failures > 0 {
				failures--
				r.events = append(r.events, "fail "+name)
				return errors.New(name + " unavailable")
			}
			r.events = append(r.events, "start "+name)
			return nil
		},
		OnStop: func(context.Context) error {
			r.events = append(r.events, "stop "+name)
			return nil
		},
	}
}

func TestStartup(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		deps        func(r *recorder) []Dependency
		wantErr     bool
		wantEvents  []string
	}{
		{
			name:        "dependencies start before dependents",
			maxAttempts: 1,
			deps: func(r *recorder) []Dependency {
				return []Dependency{r.dep("api", []string{"db"}, 0), r.dep("db", nil, 0)}
			},
			wantEvents: []string{"start db", "start api"},
		},
		{
			name:        "retries until the dependency comes up",
			maxAttempts: 3,
			deps: func(r *recorder) []Dependency {
				return []Dependency{r.dep("db", nil, 2), r.dep("api", []string{"db"}, 0)}
			},
			wantEvents: []string{"fail db", "fail db", "start db", "start api"},
		},
		{
			name:        "gives up after max attempts",
			maxAttempts: 2,
			deps: func(r *recorder) []Dependency {
				return []Dependency{r.dep("db", nil, 5)}
			},
			wantErr:    true,
			wantEvents: []string{"fail db", "fail db"},
		},
		{
			name:        "cycles are reported",
			maxAttempts: 1,
			deps: func(r *recorder) []Dependency {
				return []Dependency{r.dep("a", []string{"b"}, 0), r.dep("b", []string{"a"}, 0)}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			s := New(testutil.NewLogger(), tt.maxAttempts, 0)
			for _, d := range tt.deps(r) {
				s.Add(d)
			}

			err := s.Start(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantEvents, r.events)
		})
	}
}

func TestStartup_StopReversesStartOrder(t *testing.T) {
	r := &recorder{}
	s := New(testutil.NewLogger(), 1, 0)
	s.Add(r.dep("api", []string{"cache", "db"}, 0))
	s.Add(r.dep("db", nil, 0))
	s.Add(r.dep("cache", nil, 0))

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	assert.Equal(t, []string{
		"start cache", "start db", "start api",
		"stop api", "stop db", "stop cache",
	}, r.events)
	assert.Equal(t, StatusStopped, s.Status("api"))
}
