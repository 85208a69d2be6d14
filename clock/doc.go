/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package clock wraps the CLOCK_ADJTIME syscall for the clocks the servo reads
its reference rate from, and converts between a PPB frequency adjustment and
the addend representation of an accumulator-based hardware clock.

An accumulator clock adds its addend to a 32-bit accumulator on every input
tick and advances its sub-second counter on overflow, so a larger addend
makes the clock run faster. A PHC reports the same information as a
frequency offset in PPB. AddendFromPPB and PPBFromAddend map one onto the
other with MaxAddend as the nominal (0 PPB) value.
*/
package clock
