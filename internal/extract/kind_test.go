package extract

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want FileKind
	}{
		{"src/app/models.py", KindPython},
		{"docker-compose.yml", KindYAML},
		{"deploy/values.yaml", KindYAML},
		{"Dockerfile", KindDockerfile},
		{"build/Dockerfile.prod", KindDockerfile},
		{"services/api/dockerfile", KindDockerfile},
		{"README.md", KindOther},
		{"main.go", KindOther},
	}

	for _, tt := range tests {
		if got := Classify(tt.path); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestBlockExtractorFor(t *testing.T) {
	if BlockExtractorFor(KindYAML, 100) == nil {
		t.Error("expected extractor for YAML")
	}
	if BlockExtractorFor(KindDockerfile, 100) == nil {
		t.Error("expected extractor for Dockerfile")
	}
	if BlockExtractorFor(KindPython, 100) != nil {
		t.Error("python goes through PythonDefinitions, not the block table")
	}
	if BlockExtractorFor(KindOther, 100) != nil {
		t.Error("expected no extractor for other files")
	}
}
