package wrfpost

// Version gives the version number.
const Version = "1.0.0"
