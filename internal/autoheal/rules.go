package autoheal

import (
	"regexp"
	"strings"
)

// Rule names.
const (
	RuleAppDefaultExport = "app-default-export"
	RuleLucideIcon       = "lucide-icon"
	RuleNamedExport      = "named-export"
)

// SafeIcon replaces unknown lucide-react icons.
const SafeIcon = "Rocket"

var (
	reSourcePath = regexp.MustCompile(`/src/[\w./-]+\.(tsx|ts|jsx|js)`)

	reMissingDefault = regexp.MustCompile(`does not provide an export named 'default'`)
	reMissingExport  = regexp.MustCompile(`does not provide an export named`)
	reMissingNamed   = regexp.MustCompile(`does not provide an export named '([A-Za-z0-9_]+)'`)
	reAppSource      = regexp.MustCompile(`/src/App\.(tsx|jsx)`)

	reHasDefault   = regexp.MustCompile(`export\s+default\s+`)
	reAppComponent = regexp.MustCompile(`(export\s+)?function\s+App\s*\(|const\s+App\s*=\s*\(`)

	reLucideFrom   = regexp.MustCompile(`from\s+['"]lucide-react['"]`)
	reLucideImport = regexp.MustCompile(`import\s*\{[^}]*\}\s*from\s*['"]lucide-react['"];?`)
	reSelfClosing  = regexp.MustCompile(`<([A-Z][A-Za-z0-9_]*)\b([^>]*)/>`)

	reDefaultFunc  = regexp.MustCompile(`export\s+default\s+function\s+([A-Za-z0-9_]*)?\s*\(`)
	reDefaultIdent = regexp.MustCompile(`export\s+default\s+([A-Za-z_][A-Za-z0-9_]*)\s*;?\s*(\n|$)`)
	reDefaultExpr  = regexp.MustCompile(`export\s+default\s+[^\n;]+;?`)
)

// sourcePath extracts the first /src/... module path from a stack trace.
func sourcePath(stack string) (string, bool) {
	p := reSourcePath.FindString(stack)
	return p, p != ""
}

// fixAppDefaultExport appends a default export to an App module that
// lacks one. Without an App component a no-op component is exported.
func fixAppDefaultExport(message, modulePath, content string) (string, bool) {
	if !reMissingDefault.MatchString(message) || !reAppSource.MatchString(modulePath) {
		return "", false
	}
	if reHasDefault.MatchString(content) {
		return "", false
	}
	if reAppComponent.MatchString(content) {
		return content + "\n\nexport default App;\n", true
	}
	return content + "\n\nconst AppDefaultExport = () => null;\nexport default AppDefaultExport;\n", true
}

// fixLucideIcon collapses lucide-react imports to SafeIcon and rewrites
// self-closing component tags other than App and Fragment to it.
func fixLucideIcon(message, stack, content string) (string, bool) {
	if !reMissingExport.MatchString(message) || !strings.Contains(stack, "lucide-react") {
		return "", false
	}
	if !reLucideFrom.MatchString(content) {
		return "", false
	}

	out := reLucideImport.ReplaceAllLiteralString(content, "import { "+SafeIcon+" } from 'lucide-react';")
	out = replaceAllSubmatchFunc(reSelfClosing, out, func(m []string) string {
		name, attrs := m[1], m[2]
		if name == "App" || name == "Fragment" {
			return m[0]
		}
		return "<" + SafeIcon + attrs + "/>"
	})
	return out, out != content
}

// fixNamedExport makes content export name, either by renaming a default
// function, aliasing a default identifier, or binding a default
// expression to a const.
func fixNamedExport(message, content string) (string, bool) {
	m := reMissingNamed.FindStringSubmatch(message)
	if m == nil || m[1] == "default" {
		return "", false
	}
	name := m[1]

	hasNamed := regexp.MustCompile(`export\s+(const|function|class|let|var)\s+` + name + `\b`)
	if hasNamed.MatchString(content) {
		return "", false
	}

	if loc := reDefaultFunc.FindStringIndex(content); loc != nil {
		out := content[:loc[0]] + "function " + name + "(" + content[loc[1]:]
		out += "\nexport default " + name + ";\nexport { " + name + " };\n"
		return out, true
	}

	if sm := reDefaultIdent.FindStringSubmatch(content); sm != nil {
		if sm[1] == name {
			return content + "\nexport { " + name + " };\n", true
		}
		return content + "\nexport { " + sm[1] + " as " + name + " };\n", true
	}

	if loc := reDefaultExpr.FindStringIndex(content); loc != nil {
		start := reHasDefault.FindStringIndex(content[loc[0]:])
		out := content[:loc[0]] + "const " + name + " = " + content[loc[0]+start[1]:]
		out += "\nexport default " + name + ";\nexport { " + name + " };\n"
		return out, true
	}
	return "", false
}

func replaceAllSubmatchFunc(re *regexp.Regexp, s string, fn func([]string) string) string {
	idx := re.FindAllStringSubmatchIndex(s, -1)
	if idx == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range idx {
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = s[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
