package param

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

/*
Read takes a slice of bytes with a forest configuration in YAML and
returns the Forest parsed from it or an error. Fields the document
omits keep their Default value, so a minimal document only has to
state what it changes.
*/
func Read(doc []byte) (Forest, error) {
	f := Default()
	if err := yaml.Unmarshal(doc, &f); err != nil {
		return Forest{}, fmt.Errorf("parsing forest configuration: %v", err)
	}
	return f, nil
}

/*
ReadFile takes a filepath string, reads its contents and uses Read to
parse it and return the forest configuration or an error. If the file
indicated by the filepath cannot be opened for reading an error will
be returned.
*/
func ReadFile(filepath string) (Forest, error) {
	doc, err := os.ReadFile(filepath)
	if err != nil {
		return Forest{}, fmt.Errorf("reading forest configuration file %s: %v", filepath, err)
	}
	f, err := Read(doc)
	if err != nil {
		err = fmt.Errorf("parsing forest configuration file %s: %v", filepath, err)
	}
	return f, err
}
