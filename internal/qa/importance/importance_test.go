package importance

import (
	"math"
	"reflect"
	"testing"

	qaerrors "github.com/Adithya-Monish-Kumar-K/corpus-qa/pkg/errors"
)

const epsilon = 1e-9

func TestComputeTwoDocuments(t *testing.T) {
	units := Units{
		"doc1": {"cat", "sat"},
		"doc2": {"dog", "ran"},
	}
	table, err := Compute(units)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(table) != 4 {
		t.Fatalf("table has %d entries, want 4", len(table))
	}
	for _, tok := range []string{"cat", "sat", "dog", "ran"} {
		if math.Abs(table[tok]-math.Ln2) > epsilon {
			t.Errorf("idf(%s) = %f, want ln 2", tok, table[tok])
		}
	}
}

func TestComputeCountsUnitsNotOccurrences(t *testing.T) {
	units := Units{
		"a": {"cat", "cat", "cat", "mat"},
		"b": {"dog"},
		"c": {"dog", "cat"},
	}
	table, err := Compute(units)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if want := math.Log(3.0 / 2.0); math.Abs(table["cat"]-want) > epsilon {
		t.Errorf("idf(cat) = %f, want %f", table["cat"], want)
	}
	if want := math.Log(3.0); math.Abs(table["mat"]-want) > epsilon {
		t.Errorf("idf(mat) = %f, want %f", table["mat"], want)
	}
}

func TestComputeUbiquitousTokenIsZero(t *testing.T) {
	units := Units{
		"s1": {"python", "language"},
		"s2": {"python", "snake"},
		"s3": {"python"},
	}
	table, err := Compute(units)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if table["python"] != 0 {
		t.Errorf("idf(python) = %f, want 0", table["python"])
	}
	for tok, v := range table {
		if v < 0 {
			t.Errorf("idf(%s) = %f is negative", tok, v)
		}
	}
}

func TestComputeEmpty(t *testing.T) {
	_, err := Compute(Units{})
	if !qaerrors.Is(err, qaerrors.ErrEmptyCollection) {
		t.Fatalf("expected ErrEmptyCollection, got %v", err)
	}
	_, err = Compute(nil)
	if !qaerrors.Is(err, qaerrors.ErrEmptyCollection) {
		t.Fatalf("expected ErrEmptyCollection for nil, got %v", err)
	}
}

func TestComputeIdempotent(t *testing.T) {
	units := Units{
		"x": {"alpha", "beta", "beta"},
		"y": {"beta", "gamma"},
	}
	first, err := Compute(units)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Compute(units)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("tables differ: %v vs %v", first, second)
	}
}

func TestLookupMissing(t *testing.T) {
	table := Table{"cat": math.Ln2}
	if _, err := table.Lookup("unicorn"); !qaerrors.Is(err, qaerrors.ErrMissingTerm) {
		t.Fatalf("expected ErrMissingTerm, got %v", err)
	}
	v, err := table.Lookup("cat")
	if err != nil || v != math.Ln2 {
		t.Fatalf("Lookup(cat) = %f, %v", v, err)
	}
}

func BenchmarkCompute(b *testing.B) {
	units := make(Units, 200)
	vocab := []string{"search", "engine", "index", "query", "rank", "token", "corpus", "sentence"}
	for i := 0; i < 200; i++ {
		tokens := make([]string, 0, 50)
		for j := 0; j < 50; j++ {
			tokens = append(tokens, vocab[(i+j)%len(vocab)])
		}
		units[string(rune('a'+i%26))+string(rune('0'+i/26))] = tokens
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Compute(units); err != nil {
			b.Fatal(err)
		}
	}
}
