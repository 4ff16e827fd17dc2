package ir

import "fmt"

// MemberNamespace identifies which of a class's method namespaces a member
// definition belongs to. The ordinal is dense and is used as an array index
// by the optimizer's per-class namespace tables.
type MemberNamespace int

const (
	// PublicNamespace holds public instance methods. For interfaces this
	// namespace contains default methods; for classes it is owned by the
	// class hierarchy rather than the statics table.
	PublicNamespace MemberNamespace = iota

	// PublicStaticNamespace holds public static methods.
	PublicStaticNamespace

	// PrivateNamespace holds private instance methods (interfaces only).
	PrivateNamespace

	// PrivateStaticNamespace holds private static methods.
	PrivateStaticNamespace

	// ConstructorNamespace holds instance constructors.
	ConstructorNamespace

	// StaticConstructorNamespace holds static (class) initializers.
	StaticConstructorNamespace

	// MemberNamespaceCount is the number of namespaces; valid ordinals are
	// 0 <= ns < MemberNamespaceCount.
	MemberNamespaceCount
)

// IsStatic returns true for namespaces whose members dispatch without a
// receiver instance.
func (ns MemberNamespace) IsStatic() bool {
	return ns == PublicStaticNamespace || ns == PrivateStaticNamespace ||
		ns == StaticConstructorNamespace
}

// IsConstructor returns true for the two constructor namespaces.
func (ns MemberNamespace) IsConstructor() bool {
	return ns == ConstructorNamespace || ns == StaticConstructorNamespace
}

func (ns MemberNamespace) String() string {
	switch ns {
	case PublicNamespace:
		return "public"
	case PublicStaticNamespace:
		return "public static"
	case PrivateNamespace:
		return "private"
	case PrivateStaticNamespace:
		return "private static"
	case ConstructorNamespace:
		return "constructor"
	case StaticConstructorNamespace:
		return "static constructor"
	default:
		return fmt.Sprintf("MemberNamespace(%d)", int(ns))
	}
}
