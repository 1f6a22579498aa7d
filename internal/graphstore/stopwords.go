package graphstore

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed stopwords.yaml
var stopwordsYAML []byte

type stopwordFile struct {
	Chinese []string `yaml:"chinese"`
	English []string `yaml:"english"`
}

var stopwordSet map[string]struct{}

func init() {
	var f stopwordFile
	if err := yaml.Unmarshal(stopwordsYAML, &f); err != nil {
		panic("graphstore: invalid embedded stopwords.yaml: " + err.Error())
	}
	stopwordSet = make(map[string]struct{}, len(f.Chinese)+len(f.English))
	for _, w := range f.Chinese {
		stopwordSet[w] = struct{}{}
	}
	for _, w := range f.English {
		stopwordSet[w] = struct{}{}
	}
}

// IsStopword reports whether word (expected already lowercased) is in the
// fixed stopword contract (spec §6).
func IsStopword(word string) bool {
	_, ok := stopwordSet[word]
	return ok
}
