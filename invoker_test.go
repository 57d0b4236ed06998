package courier_test

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/miruken-go/courier"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
)

type (
	Order struct {
		Id       string
		Customer string
		Quantity int
	}

	Tenant struct {
		Region string
	}

	Overloaded struct{}

	Envelope struct{}

	DuplicateStrings struct{}

	Collections struct{}

	TwoTargets struct{}

	Pinger struct{}

	Fallbacks struct{}

	TwoDefaults struct{}

	Typed struct{}

	Shipping struct{}

	Auditor struct{}

	Legacy struct{}

	Annotated struct{}

	Service struct {
		running bool
	}

	Failing struct{}

	Counter struct{}

	Notifier struct{}

	Orders struct{}

	Totals struct{}

	Quantities struct{}

	Batches struct{}

	Concat struct{}

	Tally struct{}

	wideningConverter struct{}

	Moves struct{}

	Mixed struct{}

	Labeled struct{}

	ctxKey struct{}

	recordingTracer struct {
		embedded.Tracer
		spans []string
	}
)

var errBoom = errors.New("boom")

func (Overloaded) ProcessString(s string) string { return "string:" + s }
func (Overloaded) ProcessInt(i int) string       { return "int:" + strconv.Itoa(i) }
func (Overloaded) Processor(r Rock) string       { return "rock" }

func (Envelope) Handle(m courier.Message) any {
	return m.Payload()
}

func (DuplicateStrings) A(s string) string { return "a" }
func (DuplicateStrings) B(s string) string { return "b" }

func (Collections) List(items []string) string {
	return "list:" + strings.Join(items, ",")
}

func (Collections) Iterate(items iter.Seq[string]) string {
	var all []string
	for item := range items {
		all = append(all, item)
	}
	return "seq:" + strings.Join(all, ",")
}

func (TwoTargets) Handle(a string, b int) {}

func (Pinger) Handle(s string) string { return "handled:" + s }

func (Pinger) Ping(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return "pong:" + v
	}
	return "pong"
}

func (Fallbacks) Handle(o Order) string { return "order:" + o.Id }

func (Fallbacks) Unknown(_ *struct{ courier.Default }, text string) string {
	return "default:" + text
}

func (TwoDefaults) A(_ *struct{ courier.Default }, s string) {}
func (TwoDefaults) B(_ *struct{ courier.Default }, i int)    {}

func (Typed) Handle(msg *courier.GenericMessage[Order]) string {
	return msg.Body().Id + "@" + msg.Headers().ContentType()
}

func (Shipping) Ship(
	order  Order,
	user   *struct{ courier.Header `name:"user,required"`; V string },
	region *struct{ courier.Header `name:"tenant.Region"`; V string },
	count  *struct{ courier.Payload `expr:"payload.Quantity * 2"`; V int },
) string {
	return fmt.Sprintf("%s:%s:%s:%d", order.Id, user.V, region.V, count.V)
}

func (Auditor) Audit(
	order   Order,
	headers map[string]any,
	all     *struct{ courier.Headers; V courier.MessageHeaders },
) string {
	return fmt.Sprintf("%s:%v:%d", order.Id, headers["user"], len(all.V))
}

func (Legacy) Exchange(ctx context.Context, req courier.Message) (courier.Message, error) {
	return courier.NewMessage("reply:"+req.Payload().(string), nil), nil
}

func (Legacy) A(s string) string { return "a" }
func (Legacy) B(s string) string { return "b" }

func (Annotated) Handle(_ *struct{ courier.ServiceActivator }, s string) string {
	return "activated:" + s
}

func (Annotated) Other(s string) string { return "other:" + s }

func (s *Service) Start() error {
	s.running = true
	return nil
}

func (s *Service) Stop() error {
	s.running = false
	return nil
}

func (s *Service) IsRunning() bool {
	return s.running
}

func (s *Service) Handle(text string) string {
	return strings.ToUpper(text)
}

func (Failing) Handle(s string) error { return errBoom }

func (Counter) Count(s string) int { return len(s) }

func (Notifier) Notify(s string) {}

func (Orders) Place(order Order) string {
	return fmt.Sprintf("%s:%s:%d", order.Id, order.Customer, order.Quantity)
}

func (Totals) Sum(p *struct{ courier.Payloads; V []int }) int {
	total := 0
	for _, n := range p.V {
		total += n
	}
	return total
}

func (Quantities) Sum(p *struct{ courier.Payloads `expr:"payload.Quantity"`; V []int }) int {
	total := 0
	for _, n := range p.V {
		total += n
	}
	return total
}

func (Batches) Count(msgs []courier.Message) int {
	return len(msgs)
}

func (Concat) Join(items iter.Seq[string]) string {
	var all []string
	for item := range items {
		all = append(all, item)
	}
	return strings.Join(all, "+")
}

func (Concat) Handle(o Order) string { return o.Id }

func (Tally) Ints(items []int) string {
	return fmt.Sprintf("ints:%d", len(items))
}

func (Tally) Words(p *struct{ courier.Payloads; V []string }) string {
	return "words:" + strings.Join(p.V, ",")
}

func (Tally) None() string { return "none" }

func (wideningConverter) CanConvert(from, to reflect.Type) bool {
	return true
}

func (wideningConverter) Convert(value any, to reflect.Type) (any, error) {
	return int64(len(fmt.Sprint(value))), nil
}

func (Moves) WalkIt(w Walker) string { return w.Walk() }
func (Moves) SwimIt(s Swimmer) string { return s.Swim() }

func (Mixed) Handle(o Order) string { return "order:" + o.Id }

func (Mixed) Raw(m courier.Message) string {
	return fmt.Sprintf("raw:%v", m.Payload())
}

func (Labeled) String() string { return "labeled" }

func (Labeled) Handle(n int) int { return n + 1 }

func (r *recordingTracer) Start(
	ctx  context.Context,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	r.spans = append(r.spans, name)
	return noop.NewTracerProvider().Tracer("test").Start(ctx, name, opts...)
}

type InvokerTestSuite struct {
	suite.Suite
}

func (suite *InvokerTestSuite) newInvoker(target any, opts ...courier.Option) *courier.MethodInvoker {
	invoker, err := courier.NewMethodInvoker(target, opts...)
	suite.Require().NoError(err)
	suite.Require().NoError(invoker.Start())
	return invoker
}

func (suite *InvokerTestSuite) process(invoker *courier.MethodInvoker, payload any) (any, error) {
	return invoker.Process(context.Background(), courier.NewMessage(payload, nil))
}

func (suite *InvokerTestSuite) TestDiscovery() {
	suite.Run("Ambiguous Methods", func () {
		_, err := courier.NewMethodInvoker(DuplicateStrings{})
		var discovery *courier.DiscoveryError
		suite.Require().ErrorAs(err, &discovery)
		suite.Equal(reflect.TypeFor[DuplicateStrings](), discovery.Target)
		var ambiguous *courier.AmbiguousMethodError
		suite.Require().ErrorAs(err, &ambiguous)
		suite.Equal(reflect.TypeFor[string](), ambiguous.Key)
		suite.Equal([2]string{"A", "B"}, ambiguous.Methods)
	})

	suite.Run("Nil Target", func () {
		_, err := courier.NewMethodInvoker(nil)
		suite.ErrorIs(err, courier.ErrNilTarget)
	})

	suite.Run("No Eligible Methods", func () {
		_, err := courier.NewMethodInvoker(Rock{})
		suite.ErrorIs(err, courier.ErrNoEligibleMethods)
	})

	suite.Run("Two Exclusive Targets Skipped", func () {
		_, err := courier.NewMethodInvoker(TwoTargets{})
		suite.ErrorIs(err, courier.ErrNoEligibleMethods)
	})

	suite.Run("Two Exclusive Targets Explicit", func () {
		_, err := courier.NewMethodInvoker(TwoTargets{}, courier.WithMethodName("Handle"))
		var ineligible *courier.IneligibleMethodError
		suite.Require().ErrorAs(err, &ineligible)
		suite.Equal("Handle", ineligible.Method)
		suite.ErrorIs(err, courier.ErrTwoExclusiveTargets)
	})

	suite.Run("Multiple Defaults", func () {
		_, err := courier.NewMethodInvoker(TwoDefaults{})
		suite.ErrorIs(err, courier.ErrMultipleDefaults)
	})

	suite.Run("Missing Return Type", func () {
		_, err := courier.NewMethodInvoker(Notifier{},
			courier.WithExpectedType(reflect.TypeFor[string]()))
		suite.ErrorIs(err, courier.ErrNoEligibleMethods)

		_, err = courier.NewMethodInvoker(Notifier{},
			courier.WithMethodName("Notify"),
			courier.WithExpectedType(reflect.TypeFor[string]()))
		suite.ErrorIs(err, courier.ErrMissingReturnType)
	})

	suite.Run("Expected Type Not Feasible", func () {
		_, err := courier.NewMethodInvoker(Counter{},
			courier.WithExpectedType(reflect.TypeFor[Order]()))
		var discovery *courier.DiscoveryError
		suite.ErrorAs(err, &discovery)
	})

	suite.Run("Excludes Stringer", func () {
		invoker := suite.newInvoker(Labeled{})
		suite.Equal("courier_test.Labeled.Handle", invoker.String())
		result, err := suite.process(invoker, 1)
		suite.Require().NoError(err)
		suite.Equal(2, result)
	})

	suite.Run("Method Family", func () {
		invoker := suite.newInvoker(Overloaded{}, courier.WithMethodName("Process"))
		suite.Equal("courier_test.Overloaded.Process", invoker.String())
		_, err := suite.process(invoker, Rock{})
		suite.ErrorIs(err, courier.ErrNoCandidateMethods)
	})

	suite.Run("Method Filter", func () {
		invoker := suite.newInvoker(Overloaded{},
			courier.WithMethodName("Process"),
			courier.WithMethodFilter(func(m reflect.Method) bool {
				return m.Name != "ProcessInt"
			}))
		result, err := suite.process(invoker, 5)
		suite.Require().NoError(err)
		suite.Equal("string:5", result)
	})

	suite.Run("Explicit Method", func () {
		method, _ := reflect.TypeFor[Overloaded]().MethodByName("ProcessInt")
		invoker := suite.newInvoker(Overloaded{}, courier.WithMethod(method))
		result, err := suite.process(invoker, "7")
		suite.Require().NoError(err)
		suite.Equal("int:7", result)
	})
}

func (suite *InvokerTestSuite) TestDispatch() {
	suite.Run("Overloaded Family", func () {
		invoker := suite.newInvoker(Overloaded{}, courier.WithMethodName("Process"))
		result, err := suite.process(invoker, "x")
		suite.Require().NoError(err)
		suite.Equal("string:x", result)

		result, err = suite.process(invoker, 5)
		suite.Require().NoError(err)
		suite.Equal("int:5", result)
	})

	suite.Run("Message Method", func () {
		invoker := suite.newInvoker(Envelope{})
		for _, payload := range []any{"x", 5, Order{Id: "A-1"}} {
			result, err := suite.process(invoker, payload)
			suite.Require().NoError(err)
			suite.Equal(payload, result)
		}
	})

	suite.Run("Slice Before Iterator", func () {
		invoker := suite.newInvoker(Collections{})
		result, err := suite.process(invoker, []string{"a", "b"})
		suite.Require().NoError(err)
		suite.Equal("list:a,b", result)

		result, err = suite.process(invoker, [2]string{"c", "d"})
		suite.Require().NoError(err)
		suite.Equal("seq:c,d", result)

		result, err = suite.process(invoker, []int{1, 2})
		suite.Require().NoError(err)
		suite.Equal("seq:1,2", result)
	})

	suite.Run("Void Method", func () {
		invoker := suite.newInvoker(Pinger{})
		result, err := suite.process(invoker, "x")
		suite.Require().NoError(err)
		suite.Equal("handled:x", result)

		ctx := context.WithValue(context.Background(), ctxKey{}, "ctx")
		result, err = invoker.Process(ctx, courier.NewMessage(Rock{}, nil))
		suite.Require().NoError(err)
		suite.Equal("pong:ctx", result)
	})

	suite.Run("Default Method", func () {
		invoker := suite.newInvoker(Fallbacks{})
		result, err := suite.process(invoker, Order{Id: "A-1"})
		suite.Require().NoError(err)
		suite.Equal("order:A-1", result)

		result, err = suite.process(invoker, 7)
		suite.Require().NoError(err)
		suite.Equal("default:7", result)
	})

	suite.Run("Payload And Message Methods", func () {
		invoker := suite.newInvoker(Mixed{})
		result, err := suite.process(invoker, Order{Id: "A-1"})
		suite.Require().NoError(err)
		suite.Equal("order:A-1", result)

		result, err = suite.process(invoker, "x")
		suite.Require().NoError(err)
		suite.Equal("raw:x", result)

		result, err = invoker.Process(context.Background(), courier.NewMessage[any](nil, nil))
		suite.Require().NoError(err)
		suite.Equal("raw:<nil>", result)
	})

	suite.Run("Ambiguous Match", func () {
		invoker := suite.newInvoker(Moves{})
		_, err := suite.process(invoker, Duck{})
		var handling *courier.MessageHandlingError
		suite.Require().ErrorAs(err, &handling)
		var ambiguous *courier.AmbiguousMatchError
		suite.ErrorAs(err, &ambiguous)
	})

	suite.Run("No Candidate", func () {
		invoker := suite.newInvoker(Overloaded{}, courier.WithMethodName("Process"))
		msg := courier.NewMessage(Rock{}, nil)
		_, err := invoker.Process(context.Background(), msg)
		var handling *courier.MessageHandlingError
		suite.Require().ErrorAs(err, &handling)
		suite.Same(msg, handling.Message)
		suite.ErrorIs(err, courier.ErrNoCandidateMethods)
	})

	suite.Run("Nil Message", func () {
		invoker := suite.newInvoker(Pinger{})
		_, err := invoker.Process(context.Background(), nil)
		var handling *courier.MessageHandlingError
		suite.ErrorAs(err, &handling)
	})

	suite.Run("Method Error Unchanged", func () {
		invoker := suite.newInvoker(Failing{})
		_, err := suite.process(invoker, "x")
		suite.Same(errBoom, err)
	})

	suite.Run("Function Target", func () {
		invoker := suite.newInvoker(func(ctx context.Context, n int) int {
			return n * 2
		})
		result, err := suite.process(invoker, 21)
		suite.Require().NoError(err)
		suite.Equal(42, result)
	})
}

func (suite *InvokerTestSuite) TestArguments() {
	suite.Run("Generic Message", func () {
		invoker := suite.newInvoker(Typed{})
		result, err := invoker.Process(context.Background(), courier.NewMessage(
			map[string]any{"Id": "A-1"},
			map[string]any{courier.ContentTypeHeader: "text/plain"}))
		suite.Require().NoError(err)
		suite.Equal("A-1@text/plain", result)
	})

	suite.Run("Header Qualifiers", func () {
		invoker := suite.newInvoker(Shipping{})
		result, err := invoker.Process(context.Background(), courier.NewMessage(
			Order{Id: "A-1", Quantity: 3},
			map[string]any{"user": "ann", "tenant": Tenant{Region: "eu"}}))
		suite.Require().NoError(err)
		suite.Equal("A-1:ann:eu:6", result)
	})

	suite.Run("Optional Header Missing", func () {
		invoker := suite.newInvoker(Shipping{})
		result, err := invoker.Process(context.Background(), courier.NewMessage(
			Order{Id: "A-1", Quantity: 1},
			map[string]any{"user": "ann"}))
		suite.Require().NoError(err)
		suite.Equal("A-1:ann::2", result)
	})

	suite.Run("Required Header Missing", func () {
		invoker := suite.newInvoker(Shipping{})
		_, err := suite.process(invoker, Order{Id: "A-1"})
		var handling *courier.MessageHandlingError
		suite.Require().ErrorAs(err, &handling)
		suite.ErrorIs(err, courier.ErrMissingHeader)
	})

	suite.Run("Header Expression Fails", func () {
		invoker := suite.newInvoker(Shipping{})
		_, err := invoker.Process(context.Background(), courier.NewMessage(
			Order{Id: "A-1"},
			map[string]any{"user": "ann", "tenant": Rock{}}))
		var handling *courier.MessageHandlingError
		suite.Require().ErrorAs(err, &handling)
		var evaluation *courier.EvaluationError
		suite.False(errors.As(err, &evaluation))
	})

	suite.Run("Headers", func () {
		invoker := suite.newInvoker(Auditor{})
		result, err := invoker.Process(context.Background(), courier.NewMessage(
			Order{Id: "A-1"}, map[string]any{"user": "ann"}))
		suite.Require().NoError(err)
		suite.Equal("A-1:ann:3", result)
	})

	suite.Run("Json Payload", func () {
		invoker := suite.newInvoker(Orders{})
		result, err := invoker.Process(context.Background(), courier.NewMessage(
			[]byte(`{"id":"A-1","customer":"acme","quantity":2}`),
			map[string]any{courier.ContentTypeHeader: "application/json; charset=utf-8"}))
		suite.Require().NoError(err)
		suite.Equal("A-1:acme:2", result)
	})

	suite.Run("Malformed Json Payload", func () {
		invoker := suite.newInvoker(Orders{})
		_, err := invoker.Process(context.Background(), courier.NewMessage(
			`{"id":`, map[string]any{courier.ContentTypeHeader: "application/json"}))
		var handling *courier.MessageHandlingError
		suite.ErrorAs(err, &handling)
	})

	suite.Run("Converter Result Not Assignable", func () {
		invoker := suite.newInvoker(func(n int) int { return n },
			courier.WithConverter(wideningConverter{}))
		var result any
		var err error
		suite.NotPanics(func() {
			result, err = suite.process(invoker, "seven")
		})
		suite.Nil(result)
		var handling *courier.MessageHandlingError
		suite.Require().ErrorAs(err, &handling)
		suite.Contains(err.Error(), "int64")
	})

	suite.Run("Expected Type", func () {
		invoker := suite.newInvoker(Counter{},
			courier.WithExpectedType(reflect.TypeFor[string]()))
		result, err := suite.process(invoker, "hello")
		suite.Require().NoError(err)
		suite.Equal("5", result)
	})
}

func (suite *InvokerTestSuite) TestBatch() {
	batch := []courier.Message{
		courier.NewMessage(1, nil),
		courier.NewMessage(2, nil),
		courier.NewMessage("3", nil),
	}

	suite.Run("Payloads", func () {
		invoker := suite.newInvoker(Totals{}, courier.WithMessageList(true))
		result, err := invoker.ProcessBatch(context.Background(), batch, nil)
		suite.Require().NoError(err)
		suite.Equal(6, result)
	})

	suite.Run("Payloads Expression", func () {
		invoker := suite.newInvoker(Quantities{}, courier.WithMessageList(true))
		result, err := invoker.ProcessBatch(context.Background(), []courier.Message{
			courier.NewMessage(Order{Id: "A-1", Quantity: 2}, nil),
			courier.NewMessage(Order{Id: "A-2", Quantity: 5}, nil),
		}, nil)
		suite.Require().NoError(err)
		suite.Equal(7, result)
	})

	suite.Run("Payloads Requires List", func () {
		_, err := courier.NewMethodInvoker(Totals{}, courier.WithMethodName("Sum"))
		var ineligible *courier.IneligibleMethodError
		suite.ErrorAs(err, &ineligible)
	})

	suite.Run("Messages", func () {
		invoker := suite.newInvoker(Batches{}, courier.WithMessageList(true))
		result, err := invoker.ProcessBatch(context.Background(), batch, courier.MessageHeaders{"user": "ann"})
		suite.Require().NoError(err)
		suite.Equal(3, result)
	})

	suite.Run("Iterator", func () {
		invoker := suite.newInvoker(Concat{}, courier.WithMessageList(true))
		result, err := invoker.ProcessBatch(context.Background(), batch, nil)
		suite.Require().NoError(err)
		suite.Equal("1+2+3", result)
	})

	suite.Run("Collection Over Void", func () {
		invoker := suite.newInvoker(Tally{}, courier.WithMessageList(true))
		result, err := invoker.ProcessBatch(context.Background(), []courier.Message{
			courier.NewMessage(1, nil),
			courier.NewMessage(2, nil),
		}, nil)
		suite.Require().NoError(err)
		suite.Equal("ints:2", result)
	})

	suite.Run("Collection By Element", func () {
		invoker := suite.newInvoker(Tally{}, courier.WithMessageList(true))
		result, err := invoker.ProcessBatch(context.Background(), []courier.Message{
			courier.NewMessage("a", nil),
			courier.NewMessage("b", nil),
		}, nil)
		suite.Require().NoError(err)
		suite.Equal("words:a,b", result)
	})

	suite.Run("Single Message Skips Collections", func () {
		invoker := suite.newInvoker(Tally{}, courier.WithMessageList(true))
		result, err := suite.process(invoker, Order{Id: "A-1"})
		suite.Require().NoError(err)
		suite.Equal("none", result)
	})

	suite.Run("Payload Of Batch", func () {
		invoker := suite.newInvoker(Orders{}, courier.WithMessageList(true))
		_, err := invoker.ProcessBatch(context.Background(), batch, nil)
		var handling *courier.MessageHandlingError
		suite.Require().ErrorAs(err, &handling)
		suite.IsType(&courier.GenericMessage[[]courier.Message]{}, handling.Message)
	})
}

func (suite *InvokerTestSuite) TestAnnotation() {
	suite.Run("Prefers Annotated", func () {
		invoker := suite.newInvoker(Annotated{},
			courier.WithAnnotation[courier.ServiceActivator]())
		result, err := suite.process(invoker, "x")
		suite.Require().NoError(err)
		suite.Equal("activated:x", result)
	})

	suite.Run("Ambiguous Without Annotation", func () {
		_, err := courier.NewMethodInvoker(Annotated{})
		var ambiguous *courier.AmbiguousMethodError
		suite.ErrorAs(err, &ambiguous)
	})

	suite.Run("Fallback Tier", func () {
		invoker := suite.newInvoker(Counter{},
			courier.WithAnnotation[courier.ServiceActivator]())
		result, err := suite.process(invoker, "abc")
		suite.Require().NoError(err)
		suite.Equal(3, result)
	})

	suite.Run("Ambiguous Fallback", func () {
		_, err := courier.NewMethodInvoker(DuplicateStrings{},
			courier.WithAnnotation[courier.ServiceActivator]())
		var ambiguous *courier.AmbiguousMethodError
		suite.ErrorAs(err, &ambiguous)
	})

	suite.Run("Legacy Exchange", func () {
		invoker := suite.newInvoker(Legacy{},
			courier.WithAnnotation[courier.ServiceActivator]())
		suite.Equal("courier_test.Legacy.Exchange", invoker.String())
		result, err := suite.process(invoker, "x")
		suite.Require().NoError(err)
		reply, ok := result.(courier.Message)
		suite.Require().True(ok)
		suite.Equal("reply:x", reply.Payload())
	})
}

func (suite *InvokerTestSuite) TestLifecycle() {
	suite.Run("Proxies Target", func () {
		service := &Service{}
		invoker, err := courier.NewMethodInvoker(service)
		suite.Require().NoError(err)
		suite.False(invoker.IsRunning())
		suite.Require().NoError(invoker.Start())
		suite.True(service.running)
		suite.True(invoker.IsRunning())

		result, err := suite.process(invoker, "up")
		suite.Require().NoError(err)
		suite.Equal("UP", result)

		suite.Require().NoError(invoker.Stop())
		suite.False(invoker.IsRunning())
	})

	suite.Run("Always Running", func () {
		invoker := suite.newInvoker(Counter{})
		suite.True(invoker.IsRunning())
		suite.NoError(invoker.Stop())
	})

	suite.Run("No Expression Parser", func () {
		invoker, err := courier.NewMethodInvoker(Shipping{},
			courier.WithOptions(courier.Options{}),
			func(o *courier.Options) { o.Expressions = nil })
		suite.Require().NoError(err)
		suite.ErrorIs(invoker.Start(), courier.ErrNoExpressionParser)
	})
}

func (suite *InvokerTestSuite) TestObservability() {
	suite.Run("Traces Dispatch", func () {
		tracer := &recordingTracer{}
		invoker := suite.newInvoker(Overloaded{},
			courier.WithMethodName("Process"),
			courier.WithTracer(tracer),
			courier.WithLogger(testr.New(suite.T())))
		_, err := suite.process(invoker, "x")
		suite.Require().NoError(err)
		_, err = suite.process(invoker, Rock{})
		suite.Error(err)
		suite.Equal([]string{"courier.process", "courier.process"}, tracer.spans)
	})
}

func TestInvokerTestSuite(t *testing.T) {
	suite.Run(t, new(InvokerTestSuite))
}
