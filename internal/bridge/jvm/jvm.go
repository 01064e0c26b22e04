// Package jvm binds the bridge to a Java virtual machine. libjvm is loaded
// at runtime with purego and driven through the JNI invocation and native
// interface function tables, so no cgo toolchain is needed.
package jvm

import (
	"errors"
	"strings"
)

// Options configures a new virtual machine.
type Options struct {
	// LibPath is the path to libjvm (libjvm.so, libjvm.dylib).
	LibPath string
	// ClassPath is passed as -Djava.class.path.
	ClassPath string
	// Args are extra VM options such as -Xmx64m.
	Args []string
}

// ErrUnsupported is returned on platforms without a purego dlopen.
var ErrUnsupported = errors.New("jvm: unsupported platform")

// vmArgs returns the option strings for JNI_CreateJavaVM.
func (o Options) vmArgs() []string {
	var args []string
	if o.ClassPath != "" {
		args = append(args, "-Djava.class.path="+o.ClassPath)
	}
	for _, a := range o.Args {
		if a = strings.TrimSpace(a); a != "" {
			args = append(args, a)
		}
	}
	return args
}
