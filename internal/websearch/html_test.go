package websearch

import "testing"

func TestCleanHTML(t *testing.T) {
	in := `<html><head><style>p{color:red}</style></head><body>
<h1>Speed of sound</h1><p>About <b>343 m/s</b> in air.</p><script>var x = 1;</script></body></html>`
	got := CleanHTML(in)
	want := "Speed of sound\nAbout 343 m/s in air."
	if got != want {
		t.Errorf("CleanHTML = %q, want %q", got, want)
	}
}

func TestCleanHTML_PlainText(t *testing.T) {
	got := CleanHTML("  plain   text \n\n second line ")
	if got != "plain text\nsecond line" {
		t.Errorf("CleanHTML = %q", got)
	}
}

func TestResultSetText(t *testing.T) {
	rs := &ResultSet{
		Query:  "weather in Tokyo",
		Answer: "Sunny.",
		Results: []Result{
			{Title: "Tokyo weather", URL: "https://w.example/tokyo", Content: "Sunny today"},
		},
	}
	want := "Sunny.\n\nSources:\n1. Tokyo weather\n   https://w.example/tokyo\n   Sunny today"
	if got := rs.Text(); got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}

	empty := &ResultSet{Query: "zzz"}
	if got := empty.Text(); got != `No web results for "zzz".` {
		t.Errorf("empty Text = %q", got)
	}
}

func TestResultSetText_ListsImages(t *testing.T) {
	rs := &ResultSet{
		Query: "tuning fork",
		Results: []Result{
			{Title: "Tuning fork", URL: "https://w.example/fork"},
		},
		Images: []string{"https://img.example/fork.png", "https://img.example/wave.png"},
	}
	want := "Sources:\n1. Tuning fork\n   https://w.example/fork\n\nImages:\n- https://img.example/fork.png\n- https://img.example/wave.png"
	if got := rs.Text(); got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}

	imagesOnly := &ResultSet{Query: "zzz", Images: []string{"https://img.example/a.png"}}
	if got := imagesOnly.Text(); got != "No web results for \"zzz\".\n\nImages:\n- https://img.example/a.png" {
		t.Errorf("images-only Text = %q", got)
	}
}
