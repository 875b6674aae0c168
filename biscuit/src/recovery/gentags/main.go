// Command gentags prints, to standard output, a FuncTag const block
// built from the set of functions in this module tagged with a
// "//recovery:interruptible" doc comment, rather than
// hand-maintaining the {start,end}-turned-FuncTag table by eye — the
// same "table is data, not code" design note (§9) the table itself
// documents, made honestly regenerable. Grounded in the teacher's own
// scripts/features.go (an AST-walking analysis tool over this same
// module) but driven by golang.org/x/tools/go/packages instead of a
// bare go/parser.ParseFile walk, since it needs type-checked package
// information — which package a tagged function lives in — rather
// than just syntax.
//
// Not part of the ordinary build; run via `go generate` from
// recovery/stackwalk.go's `//go:generate go run ./gentags` directive.
// That directive does not redirect the output, so stackwalk.go itself
// is not rewritten.
package main

import (
	"fmt"
	"go/ast"
	"log"
	"os"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

const tagDoc = "//recovery:interruptible"

func main() {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedSyntax | packages.NeedTypes,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		log.Fatalf("gentags: load: %v", err)
	}

	var names []string
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			for _, decl := range file.Decls {
				fn, ok := decl.(*ast.FuncDecl)
				if !ok || fn.Doc == nil {
					continue
				}
				for _, c := range fn.Doc.List {
					if strings.HasPrefix(c.Text, tagDoc) {
						names = append(names, fn.Name.Name)
					}
				}
			}
		}
	}
	sort.Strings(names)

	w := os.Stdout
	fmt.Fprintln(w, "// Code generated by gentags; DO NOT EDIT.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "package recovery")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "const (")
	for _, n := range names {
		fmt.Fprintf(w, "\tFn%s FuncTag = %q\n", strings.Title(n), n)
	}
	fmt.Fprintln(w, ")")
}
