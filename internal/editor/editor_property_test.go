package editor

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"modcollab/pkg/operation"
)

// stampedInsert is one prepend operation as the generator produces it.
type stampedInsert struct {
	Text      string
	Timestamp int64
}

// TestDedupAndStaleDropProperty checks the filtering contract against a
// simple model: arbitrary streams of prepending inserts from one sender,
// each delivered twice, must leave the document exactly as if only the
// strictly-newer operations had been applied once each.
func TestDedupAndStaleDropProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	streamGen := gen.SliceOf(gopter.CombineGens(
		gen.AlphaString(),
		gen.Int64Range(1, 1_000),
	).Map(func(vs []interface{}) stampedInsert {
		return stampedInsert{Text: vs[0].(string), Timestamp: vs[1].(int64)}
	}))

	properties.Property("double delivery equals filtered single delivery", prop.ForAll(
		func(stream []stampedInsert) bool {
			ed, buf, _ := propEditor(t)
			defer ed.Dispose()

			want := ""
			lastSeen := int64(0)
			for _, in := range stream {
				op, err := operation.NewInsert(0, in.Text)
				if err != nil {
					continue
				}
				op = op.Stamped(in.Timestamp)
				ed.ApplyRemote(op, "alice")
				ed.ApplyRemote(op, "alice")
				if in.Timestamp > lastSeen {
					want = in.Text + want
					lastSeen = in.Timestamp
				}
			}
			ed.Flush()
			return buf.GetText() == want
		},
		streamGen,
	))

	properties.TestingRun(t)
}

func propEditor(t *testing.T) (*Editor, *fakeBuffer, *recordingBroadcaster) {
	t.Helper()
	buf := newFakeBuffer("")
	bc := &recordingBroadcaster{}
	var clock operation.Clock
	return New("prop.txt", buf, "local-user", &clock, bc), buf, bc
}
