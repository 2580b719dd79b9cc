package classfile

import "strings"

// Access flags for classes, fields and methods (JVMS §4.1, §4.5, §4.6).
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccProtected  = 0x0004
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccBridge     = 0x0040
	AccVarargs    = 0x0080
	AccNative     = 0x0100
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccStrict     = 0x0800
	AccSynthetic  = 0x1000
	AccAnnotation = 0x2000
	AccEnum       = 0x4000
	AccModule     = 0x8000
)

// standardLibraryPrefixes are the internal-name prefixes of JDK classes.
var standardLibraryPrefixes = []string{
	"java/",
	"javax/",
	"jdk/",
	"sun/",
	"org/ietf/",
	"org/omg/",
	"org/w3c/",
	"org/xml/",
}

// IsStdLib reports whether internalName belongs to the JDK.
func IsStdLib(internalName string) bool {
	for _, prefix := range standardLibraryPrefixes {
		if strings.HasPrefix(internalName, prefix) {
			return true
		}
	}
	return false
}

// PackageOf returns the internal package name of internalName ("java/util"
// for "java/util/Map$Entry"), or "" for the default package.
func PackageOf(internalName string) string {
	i := strings.LastIndexByte(internalName, '/')
	if i < 0 {
		return ""
	}
	return internalName[:i]
}

// SimpleName returns the last segment of internalName.
func SimpleName(internalName string) string {
	return internalName[strings.LastIndexByte(internalName, '/')+1:]
}
