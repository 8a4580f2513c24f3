package extract

import "strings"

// Tagger picks vocabulary terms that occur as substrings of a text.
type Tagger struct {
	Vocabulary []string
	Limit      int
}

// ParsedTags tags records produced by the block parser and the fallback catalog.
var ParsedTags = Tagger{
	Vocabulary: []string{
		"network", "security", "file", "process", "text", "permission", "disk",
		"user", "linux", "bash", "shell", "server", "web", "http", "ssh",
		"firewall", "scan", "pentest", "docker", "forensic",
	},
	Limit: 8,
}

// UploadTags tags records from uploaded documents that carry no tags.
var UploadTags = Tagger{
	Vocabulary: []string{
		"wifi", "wireless", "inalámbrica", "monitor", "packet", "paquete",
		"injection", "inyección", "brute", "fuerza", "fuzzing", "sql", "db",
		"database", "web", "http", "https", "ssl", "tls", "network", "red",
		"security", "seguridad", "audit", "auditoría", "scan", "escaneo",
		"vuln", "exploit", "password", "contraseña", "hash", "crack", "linux",
		"system", "sistema", "file", "archivo", "process", "proceso",
		"performance", "rendimiento",
	},
	Limit: 5,
}

// Tags returns matching terms in vocabulary order, at most t.Limit of them.
func (t Tagger) Tags(text string) []string {
	l := strings.ToLower(text)
	tags := []string{}
	for _, term := range t.Vocabulary {
		if len(tags) == t.Limit {
			break
		}
		if strings.Contains(l, term) {
			tags = append(tags, term)
		}
	}
	return tags
}
