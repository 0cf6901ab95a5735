package graph

import (
	"strings"
	"text/template"
)

var digraphTemplate = template.Must(template.New("digraph").Funcs(template.FuncMap{"esc": escapeQuotes}).Parse(digraphTemplateText))

// tooltips keep their \n line breaks, only quotes are escaped.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

const digraphTemplateText = `digraph {
	newrank = "true"
{{ range $node := $.Nodes}}		"{{esc $node.ID}}" [label="{{esc $node.Name}}" shape={{$node.Shape}} style={{$node.Style}} tooltip="{{esc $node.Tooltip}}" fillcolor={{$node.FillColor}}]
{{ end }}
{{ range $edge := $.Edges}}		"{{esc $edge.FromNodeID}}" -> "{{esc $edge.ToNodeID}}" [style={{$edge.Style}} tooltip="{{esc $edge.Tooltip}}" color={{$edge.Color}}]
{{ end }}
}`
