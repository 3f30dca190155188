package holdfast

// Version is the current holdfast release.
const Version = "0.4.0"
