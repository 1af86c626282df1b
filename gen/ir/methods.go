package ir

// ContainerMethods maps source-level container methods to their C++
// equivalents, keyed by the container's rendered name. Methods absent from a
// container's table pass through unchanged; the tables double as the
// recognized-call whitelist for the purity analyzer.
var ContainerMethods = map[string]map[string]string{
	"vector": {"append": "push_back"},
	"map":    {},
	"set":    {"add": "insert"},
}

// TranslateMethod returns the C++ spelling for a container method. ok is
// false when the method is not in the recognized set.
func TranslateMethod(container, method string) (string, bool) {
	methods, found := ContainerMethods[container]
	if !found {
		return "", false
	}
	cpp, found := methods[method]
	if !found {
		return "", false
	}
	return cpp, true
}

// RecognizedContainer reports whether the rendered name has a method table at
// all, recognized or not.
func RecognizedContainer(name string) bool {
	_, ok := ContainerMethods[name]
	return ok
}
