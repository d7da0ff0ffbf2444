package retrieval

// DefaultStopWords are identifier candidates never worth searching for:
// language keywords, generic code words, and infrastructure-config
// boilerplate that matches everywhere. The set is immutable default data;
// callers may supply their own set to the TokenExtractor.
var DefaultStopWords = map[string]struct{}{}

func init() {
	words := []string{
		// Python keywords
		"def", "class", "self", "return", "import", "from", "with",
		"None", "True", "False", "pass", "raise", "async", "await",
		"elif", "else", "and", "not", "for", "while", "try", "except",
		"finally", "lambda", "yield", "global", "assert",
		// Generic code words
		"get", "set", "list", "json", "info", "log", "stat", "var",
		"idx", "bin", "host", "test", "image", "always", "build",
		"cache", "cli", "curl", "bash", "update", "next", "version",
		// docker-compose / YAML boilerplate
		"api", "docker", "compose", "condition", "container_name",
		"depends_on", "services", "healthcheck", "restart",
		"environment", "ports", "volumes", "networks", "depends",
		// Tokens that drown the search in irrelevant matches
		"__init__", "localhost", "redis", "interval", "timeout",
		"retries", "start_period", "python", "sleep", "start_time",
		"dpage", "login", "install", "systemhooks",
	}
	for _, w := range words {
		DefaultStopWords[w] = struct{}{}
	}
}
