package encoders

import (
	"github.com/fbz-tec/chxport/core/formatters"
	"github.com/fbz-tec/chxport/core/records"
	"gopkg.in/yaml.v3"
)

// OrderedYamlEncoder builds YAML mapping nodes from records.
type OrderedYamlEncoder struct{}

func NewOrderedYamlEncoder() OrderedYamlEncoder {
	return OrderedYamlEncoder{}
}

// EncodeRow builds a mapping node for rec. Values stay strings even when
// they look numeric; NULL becomes null.
func (OrderedYamlEncoder) EncodeRow(rec records.Record) (*yaml.Node, error) {
	row := &yaml.Node{Kind: yaml.MappingNode}

	for k, v := range rec.All() {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: k}

		valueNode := &yaml.Node{}
		if err := valueNode.Encode(formatters.FormatYAMLValue(v)); err != nil {
			return nil, err
		}
		row.Content = append(row.Content, keyNode, valueNode)
	}

	return row, nil
}
