// Package sibila coerces large language models, local or remote, into
// emitting a response that validates against a user-supplied target schema,
// then instantiates a native Go value from the validated JSON.
//
// A [Thread] carries the dialogue, a [GenConf] carries decoding parameters
// and the output-format directive, and the [schema] package compiles a
// target type to JSON Schema; [Run] drives a provider adapter
// ([provider.Adapter]) to fill it in, clamping output tokens to the
// adapter's context window, cleaning up and validating the response, and
// instantiating a native value. See facade.go for the common entry points: [Model.Text], [Model.JSON],
// [Extract], [Model.Classify] and [Model.List].
package sibila
