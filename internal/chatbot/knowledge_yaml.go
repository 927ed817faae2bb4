package chatbot

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// knowledgeFile is the YAML layout of a knowledge base:
//
//	topics:
//	  - topic: pricing
//	    triggers: [price, cost]
//	    response: "Prices depend on the treatment. Call {{.Phone}}."
//	    options: [Call, WhatsApp]
type knowledgeFile struct {
	Topics []KnowledgeEntry `yaml:"topics"`
}

// LoadKnowledgeYAML decodes and validates a YAML knowledge base.
func LoadKnowledgeYAML(r io.Reader) (*KnowledgeBase, error) {
	var doc knowledgeFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("chatbot: parse knowledge yaml: %w", err)
	}
	return NewKnowledgeBase(doc.Topics)
}

// LoadKnowledgeFile reads a YAML knowledge base from path.
func LoadKnowledgeFile(path string) (*KnowledgeBase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("chatbot: open knowledge file: %w", err)
	}
	defer f.Close()
	return LoadKnowledgeYAML(f)
}
