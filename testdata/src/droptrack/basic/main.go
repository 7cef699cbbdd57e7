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

package main

import (
	"fmt"
	"io"
	"os"
)

type holder struct {
	f *os.File
}

func wrap(f *os.File) *holder {
	return &holder{f: f}
}

func useAfterClose(name string) {
	f, err := os.Open(name)
	if err != nil {
		return
	}
	f.Close() // @Release(uaf)
	buf := make([]byte, 10)
	f.Read(buf) // @UseAfterFree(uaf)
}

func closeTwice(name string) {
	f, err := os.Create(name)
	if err != nil {
		return
	}
	f.Close() // @Release(df)
	f.Close() // @DoubleFree(df)
}

func closeTwiceThroughInterface(name string) {
	f, err := os.Open(name)
	if err != nil {
		return
	}
	var c io.Closer = f
	c.Close() // @Release(iface)
	f.Close() // @DoubleFree(iface)
}

func useThroughHolder(name string) {
	f, err := os.Open(name)
	if err != nil {
		return
	}
	h := wrap(f)
	h.f.Close()  // @Release(field)
	_ = f.Name() // @UseAfterFree(field)
}

func leak(name string) *os.File {
	f, err := os.Open(name)
	if err != nil {
		return nil
	}
	defer f.Close() // @Release(leak)
	return f        // @DanglingPointer(leak)
}

func escape(dst **os.File, name string) {
	f, err := os.Open(name)
	if err != nil {
		return
	}
	*dst = f
	f.Close() // @Release(escape)
	return    // @DanglingPointer(escape)
}

func closeOnError(name string, data []byte) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readAll(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, 64)
	n, err := f.Read(buf)
	return buf[:n], err
}

func closeAll(names []string) {
	for _, name := range names {
		f, err := os.Open(name)
		if err != nil {
			continue
		}
		f.Close()
	}
}

func ignored(name string) {
	f, err := os.Open(name)
	if err != nil {
		return
	}
	f.Close()
	//droptrack:ignore
	f.Close()
}

func main() {
	useAfterClose("a")
	closeTwice("b")
	closeTwiceThroughInterface("c")
	useThroughHolder("d")
	if f := leak("e"); f != nil {
		fmt.Println(f.Name())
	}
	var g *os.File
	escape(&g, "j")
	closeOnError("f", nil)
	readAll("g")
	closeAll([]string{"h"})
	ignored("i")
}
