package ir

// Variable identifies a storage slot in a Listing: an index plus the
// Size recorded when it was created (see Listing.CreateVar).
type Variable int

// Part identifies a scope in a Listing's variable/part graph. A Block
// is a Part that may be entered/exited and owns variables with
// destructors (see Listing.CreateBlock).
type Part int

// Root is the implicit top-level part every Listing starts with.
const Root Part = 0

const NoVar Variable = -1
