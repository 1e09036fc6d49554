package constants

// DummyAPIKey is sent as a placeholder token when talking to
// OpenAI-compatible endpoints that need an Authorization header present but
// never check its value.
const DummyAPIKey = "not-needed"
