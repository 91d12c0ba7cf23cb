// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package patterns

import (
	"fmt"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
)

// Vulnerability categories of the built-in catalogs
const (
	CategoryUserInput     = "user_input"
	CategoryEnvironment   = "environment"
	CategoryFileRead      = "file_read"
	CategorySQL           = "sql"
	CategoryCommand       = "command"
	CategoryPath          = "path"
	CategoryXSS           = "xss"
	CategoryCodeInjection = "code_injection"
	CategoryLDAP          = "ldap"
	CategoryNoSQL         = "nosql"
	CategoryTemplate      = "template"
	CategoryRedirect      = "redirect"
	CategoryValidation    = "validation"
)

type catalogEntry struct {
	kind     Kind
	category string
	mode     string
	names    []string
}

var pythonCatalog = []catalogEntry{
	{Source, CategoryUserInput, config.MatchSubstring, []string{
		"request.args", "request.form", "request.values", "request.data", "request.json", "request.files",
		"request.cookies", "request.headers", "request.GET", "request.POST", "input(",
	}},
	{Source, CategoryEnvironment, config.MatchSubstring, []string{"sys.argv", "os.environ", "os.getenv"}},
	{Sink, CategorySQL, config.MatchSuffix, []string{
		"execute", "executemany", "executescript", "raw", "cursor.execute", "db.execute", "session.execute",
		"db.session.execute", "query", "run_query",
	}},
	{Sink, CategoryCommand, config.MatchSuffix, []string{
		"os.system", "subprocess.call", "subprocess.run", "subprocess.Popen", "subprocess.check_output",
		"subprocess.check_call", "os.popen", "os.exec", "os.spawn",
	}},
	{Sink, CategoryCodeInjection, config.MatchExact, []string{"eval", "exec", "compile", "__import__"}},
	{Sink, CategoryTemplate, config.MatchSuffix, []string{"render_template_string", "jinja2.Template", "Template"}},
	{Sink, CategoryLDAP, config.MatchSuffix, []string{"search_s", "ldap.search", "conn.search"}},
	{Sink, CategoryNoSQL, config.MatchSuffix, []string{
		"find_one", "update_one", "update_many", "delete_one", "delete_many", "aggregate", "collection.find",
	}},
	{Sink, CategoryPath, config.MatchSuffix, []string{"open", "send_file", "os.remove", "shutil.rmtree"}},
	{Sink, CategoryRedirect, config.MatchSuffix, []string{"redirect"}},
	{Sanitizer, CategoryXSS, config.MatchSuffix, []string{"html.escape", "bleach.clean", "markupsafe.escape"}},
	{Sanitizer, CategoryCommand, config.MatchSuffix, []string{"shlex.quote"}},
	{Sanitizer, CategoryPath, config.MatchSuffix, []string{"secure_filename", "os.path.basename"}},
	{Sanitizer, CategoryValidation, config.MatchExact, []string{"int", "float", "uuid.UUID"}},
}

var javascriptCatalog = []catalogEntry{
	{Source, CategoryUserInput, config.MatchSubstring, []string{
		"req.body", "req.query", "req.params", "req.cookies", "req.headers", "req.ip", "req.hostname",
		"req.path", "request.body", "request.query", "request.params", "request.headers", "request.cookies",
	}},
	{Source, CategoryEnvironment, config.MatchSubstring, []string{"process.env", "process.argv"}},
	{Source, CategoryFileRead, config.MatchSuffix, []string{"fs.readFileSync"}},
	{Sink, CategoryXSS, config.MatchSuffix, []string{
		"res.send", "res.json", "res.jsonp", "res.render", "res.write", "res.end", "response.send",
		"response.json", "response.render", "response.write", "innerHTML", "document.write",
	}},
	{Sink, CategoryRedirect, config.MatchSuffix, []string{"res.redirect", "response.redirect", "res.location"}},
	{Sink, CategorySQL, config.MatchSuffix, []string{
		"db.query", "connection.query", "pool.query", "client.query", "sequelize.query", "knex.raw", "db.raw",
	}},
	{Sink, CategoryCommand, config.MatchSuffix, []string{
		"child_process.exec", "child_process.execSync", "child_process.spawn", "exec", "execSync", "spawn",
	}},
	{Sink, CategoryPath, config.MatchSuffix, []string{
		"fs.readFile", "fs.writeFile", "fs.createReadStream", "fs.unlink", "res.sendFile",
	}},
	{Sink, CategoryCodeInjection, config.MatchExact, []string{"eval", "Function", "vm.runInNewContext"}},
	{Sink, CategoryNoSQL, config.MatchSuffix, []string{"collection.find", "findOne", "updateOne", "deleteMany"}},
	{Sanitizer, CategoryXSS, config.MatchSuffix, []string{
		"escape", "escapeHtml", "DOMPurify.sanitize", "validator.escape", "xss",
	}},
	{Sanitizer, CategoryValidation, config.MatchSuffix, []string{
		"encodeURIComponent", "parseInt", "parseFloat", "Number", "path.basename", "validator.isInt",
	}},
}

var goCatalog = []catalogEntry{
	{Source, CategoryUserInput, config.MatchSubstring, []string{
		"r.URL.Query", "r.FormValue", "r.PostFormValue", "r.Form", "r.PostForm", "r.Body", "c.Query", "c.Param",
		"c.PostForm", "c.BindJSON", "c.ShouldBind", "ctx.Query", "ctx.Param", "ctx.FormValue", "ctx.Body",
	}},
	{Source, CategoryEnvironment, config.MatchSubstring, []string{"os.Getenv", "os.Args"}},
	{Sink, CategorySQL, config.MatchSuffix, []string{
		"Query", "QueryRow", "QueryContext", "QueryRowContext", "Exec", "ExecContext", "Prepare",
		"PrepareContext", "Raw", "Where", "Select", "Get", "NamedQuery", "NamedExec",
	}},
	{Sink, CategoryCommand, config.MatchSuffix, []string{
		"exec.Command", "exec.CommandContext", "os.StartProcess", "syscall.Exec", "syscall.ForkExec",
	}},
	{Sink, CategoryXSS, config.MatchSuffix, []string{
		"template.HTML", "template.HTMLAttr", "template.JS", "template.JSStr", "template.URL", "template.CSS",
	}},
	{Sink, CategoryPath, config.MatchSuffix, []string{
		"filepath.Join", "path.Join", "os.Open", "os.OpenFile", "os.Create", "ioutil.ReadFile", "os.ReadFile",
		"os.WriteFile",
	}},
	{Sink, CategoryRedirect, config.MatchSuffix, []string{"http.Redirect"}},
	{Sanitizer, CategoryXSS, config.MatchSuffix, []string{"html.EscapeString", "template.HTMLEscapeString"}},
	{Sanitizer, CategoryValidation, config.MatchSuffix, []string{
		"strconv.Atoi", "strconv.ParseInt", "url.QueryEscape", "filepath.Base", "uuid.Parse",
	}},
}

// neutralCatalog holds the validation and authentication helpers shared by all languages
var neutralCatalog = []catalogEntry{
	{Sanitizer, CategoryValidation, config.MatchSuffix, []string{
		"validate", "sanitize", "escape", "validateBody", "validateParams", "validateQuery", "validateHeaders",
		"validateRequest", "parse", "safeParse", "authenticate", "requireAuth", "requireAdmin",
	}},
}

var builtinCatalogs = map[string][]catalogEntry{
	facts.LanguagePython:     pythonCatalog,
	facts.LanguageJavascript: javascriptCatalog,
	facts.LanguageGo:         goCatalog,
	AnyLanguage:              neutralCatalog,
}

func registerCatalog(r *Registry, language string, catalog []catalogEntry) error {
	for _, entry := range catalog {
		for _, name := range entry.names {
			m, err := NewMatcher(entry.mode, name)
			if err != nil {
				return err
			}
			if err := r.Register(language, entry.category, entry.kind, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// NewRegistry returns a frozen registry with the built-in catalogs of the languages accepted by the config, and the
// patterns declared in the config.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	r := NewEmptyRegistry()
	for _, language := range []string{facts.LanguagePython, facts.LanguageJavascript, facts.LanguageGo} {
		if !cfg.HasLanguage(language) &&
			!(language == facts.LanguageJavascript && cfg.HasLanguage(facts.LanguageTypescript)) {
			continue
		}
		if err := registerCatalog(r, language, builtinCatalogs[language]); err != nil {
			return nil, err
		}
	}
	if err := registerCatalog(r, AnyLanguage, neutralCatalog); err != nil {
		return nil, err
	}
	for i, spec := range cfg.Patterns {
		if spec.Language != AnyLanguage && !cfg.HasLanguage(spec.Language) {
			continue
		}
		m, err := NewMatcher(spec.Mode, spec.Match)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		if err := r.Register(spec.Language, spec.Category, Kind(spec.Kind), m); err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
	}
	r.Freeze()
	return r, nil
}
