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

package config

import (
	"regexp"
)

// CodeIdentifier identifies a code element: a function, a method of some receiver type, or a type.
// The strings are regexes if they can be compiled into regexes, plain strings otherwise. An empty field matches
// anything.
type CodeIdentifier struct {
	Package  string
	Method   string
	Receiver string
	Type     string
	// This will not be part of the yaml config
	computedRegexs *codeIdentifierRegex
}

type codeIdentifierRegex struct {
	packageRegex  *regexp.Regexp
	typeRegex     *regexp.Regexp
	methodRegex   *regexp.Regexp
	receiverRegex *regexp.Regexp
}

// compileRegexes compiles the strings in the code identifier into regexes. It compiles all identifiers into regexes
// or none.
func compileRegexes(cid CodeIdentifier) CodeIdentifier {
	packageRegex, err := regexp.Compile(cid.Package)
	if err != nil {
		return cid
	}
	typeRegex, err := regexp.Compile(cid.Type)
	if err != nil {
		return cid
	}
	methodRegex, err := regexp.Compile(cid.Method)
	if err != nil {
		return cid
	}
	receiverRegex, err := regexp.Compile(cid.Receiver)
	if err != nil {
		return cid
	}
	cid.computedRegexs = &codeIdentifierRegex{
		packageRegex:  packageRegex,
		typeRegex:     typeRegex,
		methodRegex:   methodRegex,
		receiverRegex: receiverRegex,
	}
	return cid
}

// Matches returns true if each of the fields of cid is matched by the corresponding field of the pattern, or the
// pattern's field is empty
func (cid CodeIdentifier) Matches(pattern CodeIdentifier) bool {
	if pattern.computedRegexs != nil {
		return (pattern.Package == "" || pattern.computedRegexs.packageRegex.MatchString(cid.Package)) &&
			(pattern.Method == "" || pattern.computedRegexs.methodRegex.MatchString(cid.Method)) &&
			(pattern.Receiver == "" || pattern.computedRegexs.receiverRegex.MatchString(cid.Receiver)) &&
			(pattern.Type == "" || pattern.computedRegexs.typeRegex.MatchString(cid.Type))
	}
	return (pattern.Package == "" || cid.Package == pattern.Package) &&
		(pattern.Method == "" || cid.Method == pattern.Method) &&
		(pattern.Receiver == "" || cid.Receiver == pattern.Receiver) &&
		(pattern.Type == "" || cid.Type == pattern.Type)
}

// ExistsCid is true if there is some x in a such that f(x) is true.
func ExistsCid(a []CodeIdentifier, f func(identifier CodeIdentifier) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}

// DefaultReleaseFunctions are the closers of the standard library that release an operating system resource.
// A value whose type is the receiver of one of those functions must not be used after it has been released.
func DefaultReleaseFunctions() []CodeIdentifier {
	return []CodeIdentifier{
		{Package: "^os$", Receiver: "^File$", Method: "^Close$"},
		{Package: "^net$", Receiver: "^(Conn|Listener|TCPConn|UDPConn|UnixConn|TCPListener)$", Method: "^Close$"},
		{Package: "^database/sql$", Receiver: "^(DB|Conn|Rows|Stmt|Tx)$", Method: "^(Close|Commit|Rollback)$"},
		{Package: "^io$", Receiver: "Closer$", Method: "^Close$"},
	}
}
