// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Tree-sitter node types used for import discovery.
const (
	nodeImportStatement     = "import_statement"
	nodeExportStatement     = "export_statement"
	nodeImportRequireClause = "import_require_clause"
	nodeCallExpression      = "call_expression"
	nodeString              = "string"
	nodeStringFragment      = "string_fragment"
	nodeIdentifier          = "identifier"
	nodeImport              = "import"
	nodeType                = "type"
)

// ImportForm is the syntactic form an import was written in.
type ImportForm int

const (
	// FormImport is `import ... from "x"` or `import "x"`.
	FormImport ImportForm = iota

	// FormReexport is `export ... from "x"`.
	FormReexport

	// FormRequire is `require("x")` or `import x = require("x")`.
	FormRequire

	// FormDynamic is `import("x")`.
	FormDynamic
)

// Import is one module specifier found in a source file.
type Import struct {
	// Request is the specifier text without quotes.
	Request string

	// Form is the syntax the specifier appeared in.
	Form ImportForm

	// TypeOnly is set for `import type` and `export type ... from`.
	TypeOnly bool

	// Line is the 1-indexed line of the statement.
	Line int
}

// languageFor returns the grammar for a file path.
func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx":
		return tsx.GetLanguage()
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// ParseImports returns every static, re-export, require and dynamic import
// specifier in content, in source order.
//
// Description:
//
//	The file is parsed with the tree-sitter grammar matching its extension
//	(.tsx uses the TSX grammar, .ts/.mts/.cts the TypeScript grammar, and
//	everything else the JavaScript grammar, which covers JSX). Only string
//	literal specifiers are returned; computed require/import arguments are
//	skipped. Syntax errors do not fail the parse: tree-sitter recovers and
//	whatever imports it could still see are returned.
//
// Inputs:
//
//	ctx - Cancels the parse.
//	path - File path, used to pick the grammar.
//	content - File content. Invalid UTF-8 (legacy encodings) is logged and
//	  parsed as raw bytes.
//
// Outputs:
//
//	[]Import - Imports in source order. Never nil.
//	error - Non-nil on cancellation or parser failure.
//
// Thread Safety: Safe for concurrent use; a parser is created per call.
func ParseImports(ctx context.Context, path string, content []byte) ([]Import, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		slog.Warn("source is not valid UTF-8, parsing raw bytes", slog.String("file", path))
	}

	parser := sitter.NewParser()
	parser.SetLanguage(languageFor(path))

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	imports := make([]Import, 0, 8)
	if root == nil {
		return imports, nil
	}
	if root.HasError() {
		slog.Debug("source contains syntax errors", slog.String("file", path))
	}

	collectImports(root, content, &imports)
	return imports, nil
}

func collectImports(node *sitter.Node, content []byte, out *[]Import) {
	switch node.Type() {
	case nodeImportStatement:
		collectImportStatement(node, content, out)
		return
	case nodeExportStatement:
		if src := node.ChildByFieldName("source"); src != nil {
			*out = append(*out, Import{
				Request:  stringContent(src, content),
				Form:     FormReexport,
				TypeOnly: hasChildOfType(node, nodeType),
				Line:     line(node),
			})
		}
	case nodeCallExpression:
		if imp, ok := callImport(node, content); ok {
			*out = append(*out, imp)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectImports(node.Child(i), content, out)
	}
}

func collectImportStatement(node *sitter.Node, content []byte, out *[]Import) {
	typeOnly := hasChildOfType(node, nodeType)

	if src := node.ChildByFieldName("source"); src != nil {
		*out = append(*out, Import{
			Request:  stringContent(src, content),
			Form:     FormImport,
			TypeOnly: typeOnly,
			Line:     line(node),
		})
		return
	}

	// import x = require("y")
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != nodeImportRequireClause {
			continue
		}
		if src := firstChildOfType(child, nodeString); src != nil {
			*out = append(*out, Import{
				Request:  stringContent(src, content),
				Form:     FormRequire,
				TypeOnly: typeOnly,
				Line:     line(node),
			})
		}
	}
}

// callImport recognizes require("x") and import("x").
func callImport(node *sitter.Node, content []byte) (Import, bool) {
	fn := node.ChildByFieldName("function")
	args := node.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return Import{}, false
	}

	var form ImportForm
	switch {
	case fn.Type() == nodeImport:
		form = FormDynamic
	case fn.Type() == nodeIdentifier && fn.Content(content) == "require":
		form = FormRequire
	default:
		return Import{}, false
	}

	if args.NamedChildCount() == 0 {
		return Import{}, false
	}
	first := args.NamedChild(0)
	if first.Type() != nodeString {
		return Import{}, false
	}
	return Import{Request: stringContent(first, content), Form: form, Line: line(node)}, true
}

// stringContent extracts the content from a string node.
func stringContent(node *sitter.Node, content []byte) string {
	if frag := firstChildOfType(node, nodeStringFragment); frag != nil {
		return frag.Content(content)
	}
	return strings.Trim(node.Content(content), "\"'`")
}

func firstChildOfType(node *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == typ {
			return child
		}
	}
	return nil
}

func hasChildOfType(node *sitter.Node, typ string) bool {
	return firstChildOfType(node, typ) != nil
}

func line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}
