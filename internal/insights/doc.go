// Package insights turns study artifacts into written narratives through
// the OpenAI chat API.
//
// The client is strictly downstream of the pipeline: it reads formatted
// artifacts and produces prose. A failed or refused generation is reported
// to the caller and never touches the artifacts themselves.
package insights
