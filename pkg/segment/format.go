package segment

// EmptyRowSequence is the literal sentinel line written in place of a
// tombstoned document. It is a stable on-disk constant, not merely an
// internal marker: external tooling and the crash-recovery properties
// rely on the exact bytes.
const EmptyRowSequence = "<fgsngflwsitu948whg49ghwe98gh>"

// DefaultMaxElements is the default cap on live documents a segment
// holds before its owning collection starts a new one.
const DefaultMaxElements = 50000

// Extension is the on-disk suffix for segment files.
const Extension = ".knndb"
