package history

// DataVariable is the global the dashboard reads the document from when it
// is persisted in its JS-assignment form.
const DataVariable = "window.BENCHMARK_DATA"

// Data is the persisted benchmark history document.
type Data struct {
	LastUpdate int64              `json:"lastUpdate"`
	RepoURL    string             `json:"repoUrl"`
	Entries    map[string][]Entry `json:"entries"`
}

// Entry is one CI run's full result set for a suite, tied to one commit.
type Entry struct {
	Commit  CommitInfo    `json:"commit"`
	Date    int64         `json:"date"`
	Tool    Tool          `json:"tool"`
	Benches []BenchResult `json:"benches"`
}

// CommitInfo describes the commit an entry was measured at.
type CommitInfo struct {
	Author    Person `json:"author"`
	Committer Person `json:"committer"`
	ID        string `json:"id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
}

// Person is a commit author or committer.
type Person struct {
	Email    string `json:"email,omitempty"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
}

// BenchResult is one measurement of one named benchmark. Extra is opaque
// free text and is never interpreted.
type BenchResult struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Range string  `json:"range,omitempty"`
	Extra string  `json:"extra,omitempty"`
}

// Point is a single sample of a benchmark series.
type Point struct {
	Date     int64   `json:"date"`
	Value    float64 `json:"value"`
	CommitID string  `json:"commit_id"`
}

// AppendResult is returned by a successful Append.
type AppendResult struct {
	Stored Entry
	Alerts []Alert
}

// bench returns the bench result with the given name, if present.
func (e *Entry) bench(name string) (BenchResult, bool) {
	for _, b := range e.Benches {
		if b.Name == name {
			return b, true
		}
	}

	return BenchResult{}, false
}

// clone returns a copy of the entry that shares no mutable state.
func (e Entry) clone() Entry {
	benches := make([]BenchResult, len(e.Benches))
	copy(benches, e.Benches)

	e.Benches = benches

	return e
}
