package run

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/safetyjim/safetyjim/commands"
	"github.com/safetyjim/safetyjim/common/config"
)

// GenCommandsDocs writes the command list as markdown to stdout, grouped by the plugin that added them
func GenCommandsDocs(registry *commands.Registry) {
	var out bytes.Buffer
	out.WriteString("## Legend\n\n")
	out.WriteString("`<required arg>` `[optional arg]`\n\n")
	out.WriteString("Reasons and times are separated by a pipe, for example: `-mod ban @jim spamming | 2 days`\n\n")

	var groups []string
	byGroup := make(map[string][]*commands.Command)
	for _, cmd := range registry.Commands() {
		group := "Other"
		if cmd.Plugin != nil {
			group = cmd.Plugin.PluginInfo().Name
		}

		if _, ok := byGroup[group]; !ok {
			groups = append(groups, group)
		}
		byGroup[group] = append(byGroup[group], cmd)
	}

	for _, group := range groups {
		out.WriteString("## " + group + "\n\n")

		for _, cmd := range byGroup[group] {
			out.WriteString("### " + cmd.Name + "\n\n")
			if len(cmd.Aliases) > 0 {
				out.WriteString("**Aliases:** " + strings.Join(cmd.Aliases, "/") + "\n\n")
			}

			if cmd.RequiredPermsName != "" {
				out.WriteString("**Required permission:** " + cmd.RequiredPermsName + "\n\n")
			}

			out.WriteString("**Usage:**\n")
			for _, usage := range cmd.Usages {
				out.WriteString("- `" + usage + "`\n")
			}
			out.WriteString("\n")
		}
	}

	os.Stdout.Write(out.Bytes())
}

func GenConfigDocs() {
	var out bytes.Buffer

	for _, v := range config.Options() {
		out.WriteString("**" + v.Description + "**")

		typeStr := ""
		def := ""
		switch t := v.DefaultValue.(type) {
		case string:
			typeStr = "string"
			def = t
		case bool:
			typeStr = "true/false"
			def = fmt.Sprint(t)
		case int, int64:
			typeStr = "number"
			def = fmt.Sprint(t)
		}

		if typeStr != "" {
			out.WriteString(" (" + typeStr)
			if def != "" {
				out.WriteString(", default: " + def)
			}
			out.WriteString(")")
		}
		out.WriteString("\n")

		out.WriteString(config.EnvKey(v.Name) + "\n\n")
	}

	os.Stdout.Write(out.Bytes())
}
