// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lanes

import (
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/gomlx/bitonic/backends"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	reLineComment  = regexp.MustCompile(`//[^\n]*`)
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reKernelDecl   = regexp.MustCompile(`(?:__)?kernel\s+void\s+(\w+)\s*\(([^)]*)\)`)
)

// Program is a compiled program of the lanes backend: the kernels declared in the source, bound to their
// native translations.
type Program struct {
	backend   *Backend
	name      string
	kernels   map[string]*kernelDef
	order     []string
	finalized atomic.Bool
}

// Compile-time check.
var _ backends.Program = (*Program)(nil)

// EntryPoints returns the names of the kernels in the program, in source order.
func (p *Program) EntryPoints() []string {
	return p.order
}

// Finalize releases the program. It can't be dispatched afterward.
func (p *Program) Finalize() {
	p.finalized.Store(true)
}

// Name of the source the program was compiled from.
func (p *Program) Name() string {
	return p.name
}

// paramKind classifies one parameter declaration of a kernel.
func paramKind(decl string) ParamKind {
	fields := strings.Fields(strings.ReplaceAll(decl, "*", " * "))
	var isGlobal, isPointer, isConst bool
	for _, field := range fields {
		switch field {
		case "__global", "global":
			isGlobal = true
		case "*":
			isPointer = true
		case "const", "__constant", "constant":
			isConst = true
		}
	}
	if !isPointer && !isGlobal {
		return ParamScalar
	}
	if isConst {
		return ParamReadOnlyBuffer
	}
	return ParamBuffer
}

// parseParams splits and classifies the parameter list of a kernel declaration.
func parseParams(list string) []ParamKind {
	list = strings.TrimSpace(list)
	if list == "" || list == "void" {
		return nil
	}
	parts := strings.Split(list, ",")
	kinds := make([]ParamKind, 0, len(parts))
	for _, part := range parts {
		kinds = append(kinds, paramKind(part))
	}
	return kinds
}

// Compile parses the kernel declarations of the source and binds each one to its registered translation.
//
// It returns an error wrapping backends.ErrCompile if the source declares no kernel, if the braces are unbalanced,
// or if a kernel has no registered translation with matching parameters.
func (b *Backend) Compile(source backends.KernelSource) (backends.Program, error) {
	if b.isFinalized() {
		return nil, errors.Wrapf(backends.ErrCompile, "backend %q already finalized", BackendName)
	}
	text := reBlockComment.ReplaceAllString(source.Text, " ")
	text = reLineComment.ReplaceAllString(text, "")
	if open, closed := strings.Count(text, "{"), strings.Count(text, "}"); open != closed {
		return nil, errors.Wrapf(backends.ErrCompile, "source %q: unbalanced braces (%d '{' and %d '}')",
			source.Name, open, closed)
	}
	matches := reKernelDecl.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, errors.Wrapf(backends.ErrCompile, "source %q: no kernel declared", source.Name)
	}

	program := &Program{
		backend: b,
		name:    source.Name,
		kernels: make(map[string]*kernelDef, len(matches)),
	}
	for _, match := range matches {
		name, params := match[1], parseParams(match[2])
		if _, found := program.kernels[name]; found {
			return nil, errors.Wrapf(backends.ErrCompile, "source %q: kernel %q declared more than once", source.Name, name)
		}
		def := lookupKernel(name)
		if def == nil {
			return nil, errors.Wrapf(backends.ErrCompile, "source %q: kernel %q has no translation in backend %q",
				source.Name, name, BackendName)
		}
		if len(def.params) != len(params) {
			return nil, errors.Wrapf(backends.ErrCompile, "source %q: kernel %q declares %d parameters, the %q translation takes %d",
				source.Name, name, len(params), BackendName, len(def.params))
		}
		for idx, kind := range params {
			if kind != def.params[idx] {
				return nil, errors.Wrapf(backends.ErrCompile, "source %q: kernel %q parameter #%d is a %s, the %q translation takes a %s",
					source.Name, name, idx, kind, BackendName, def.params[idx])
			}
		}
		program.kernels[name] = def
		program.order = append(program.order, name)
	}
	klog.V(1).Infof("backend %s compiled %q: kernels %q", BackendName, source.Name, program.order)
	return program, nil
}
